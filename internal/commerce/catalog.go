package commerce

import (
	"context"

	"github.com/ariefcatur/go-course-commerce/internal/money"
)

// Course is the part of the course catalog checkout needs.
type Course struct {
	ID           string
	Title        string
	InstructorID string
	Price        money.Amount
	Published    bool
}

// Catalog resolves course ids. Missing ids are simply absent from the result.
type Catalog interface {
	Courses(ctx context.Context, ids []string) (map[string]Course, error)
}

// StaticCatalog is an in-memory Catalog keyed by course id.
type StaticCatalog map[string]Course

func (c StaticCatalog) Courses(_ context.Context, ids []string) (map[string]Course, error) {
	out := make(map[string]Course, len(ids))
	for _, id := range ids {
		if course, ok := c[id]; ok {
			out[id] = course
		}
	}
	return out, nil
}
