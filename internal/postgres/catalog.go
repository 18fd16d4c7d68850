package postgres

import (
	"context"

	"github.com/ariefcatur/go-course-commerce/internal/commerce"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog reads courses from the courses table.
type Catalog struct {
	DB *pgxpool.Pool
}

func (c Catalog) Courses(ctx context.Context, ids []string) (map[string]commerce.Course, error) {
	rows, err := c.DB.Query(ctx,
		`SELECT id, title, instructor_id, price, published FROM courses WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make(map[string]commerce.Course, len(ids))
	for rows.Next() {
		var cr commerce.Course
		if err := rows.Scan(&cr.ID, &cr.Title, &cr.InstructorID, &cr.Price, &cr.Published); err != nil {
			return nil, err
		}
		out[cr.ID] = cr
	}
	return out, rows.Err()
}

// UpsertCourse is used by seeding and admin tooling.
func (c Catalog) UpsertCourse(ctx context.Context, cr commerce.Course) error {
	_, err := c.DB.Exec(ctx, `
		INSERT INTO courses (id, title, instructor_id, price, published)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, instructor_id = EXCLUDED.instructor_id,
			price = EXCLUDED.price, published = EXCLUDED.published`,
		cr.ID, cr.Title, cr.InstructorID, cr.Price, cr.Published)
	return mapErr(err)
}
