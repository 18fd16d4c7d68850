package coupon

import (
	"testing"
	"time"

	"github.com/ariefcatur/go-course-commerce/internal/money"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func baseCoupon() Coupon {
	return Coupon{
		Code:      "SPRING10",
		Type:      Percentage,
		Value:     10,
		Issuer:    IssuerPlatform,
		ValidFrom: now.Add(-24 * time.Hour),
		ValidTo:   now.Add(24 * time.Hour),
		IsActive:  true,
	}
}

func baseContext() Context {
	return Context{
		OrderSubtotal: 200000,
		UserID:        "u1",
		CourseIDs:     []string{"c1", "c2"},
		InstructorIDs: []string{"i1", "i2"},
		Now:           now,
	}
}

func TestValidateChecksInOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Coupon, *Context)
		want   string
	}{
		{"inactive wins over expired", func(c *Coupon, _ *Context) {
			c.IsActive = false
			c.ValidTo = now.Add(-time.Hour)
		}, ReasonInactive},
		{"not yet valid", func(c *Coupon, _ *Context) { c.ValidFrom = now.Add(time.Minute) }, ReasonNotYetValid},
		{"expired wins over usage", func(c *Coupon, _ *Context) {
			c.ValidTo = now.Add(-time.Second)
			c.UsageLimit, c.UsedCount = 1, 1
		}, ReasonExpired},
		{"usage limit", func(c *Coupon, _ *Context) { c.UsageLimit, c.UsedCount = 5, 5 }, ReasonUsageLimit},
		{"per user", func(c *Coupon, x *Context) { c.UsagePerUser, x.UserUsageCount = 1, 1 }, ReasonUserLimit},
		{"min order", func(c *Coupon, _ *Context) { c.MinOrderAmount = 200001 }, ReasonMinOrder},
		{"course scope", func(c *Coupon, _ *Context) { c.ApplicableCourseID = "c9" }, ReasonCourseScope},
		{"instructor scope", func(c *Coupon, _ *Context) { c.ApplicableInstructorID = "i9" }, ReasonInstructorScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ctx := baseCoupon(), baseContext()
			tt.mutate(&c, &ctx)
			res := Validate(c, ctx)
			if res.IsValid {
				t.Fatal("expected invalid")
			}
			if len(res.ApplicabilityErrors) != 1 || res.ApplicabilityErrors[0] != tt.want {
				t.Errorf("errors: got %v, want [%s]", res.ApplicabilityErrors, tt.want)
			}
			if res.Discount != 0 {
				t.Errorf("discount on invalid coupon: %d", res.Discount)
			}
		})
	}
}

func TestValidateWindowIsInclusive(t *testing.T) {
	c, ctx := baseCoupon(), baseContext()
	c.ValidFrom, c.ValidTo = now, now
	if res := Validate(c, ctx); !res.IsValid {
		t.Fatalf("coupon valid exactly at bounds: %v", res.ApplicabilityErrors)
	}
}

func TestDiscount(t *testing.T) {
	tests := []struct {
		name  string
		typ   Type
		value int64
		max   money.Amount
		base  money.Amount
		want  money.Amount
	}{
		{"percentage", Percentage, 10, 0, 100000, 10000},
		{"percentage capped", Percentage, 50, 20000, 100000, 20000},
		{"fixed", FixedAmount, 50000, 0, 190000, 50000},
		{"fixed above base", FixedAmount, 50000, 0, 30000, 30000},
		{"full percentage", Percentage, 100, 0, 75000, 75000},
		{"zero base", FixedAmount, 100, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Coupon{Type: tt.typ, Value: tt.value, MaxDiscountAmount: tt.max}
			if got := Discount(c, tt.base); got != tt.want {
				t.Errorf("Discount: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidateUsesScopedSubtotal(t *testing.T) {
	c, ctx := baseCoupon(), baseContext()
	c.ApplicableInstructorID = "i1"
	ctx.ScopedSubtotal = 100000
	ctx.Scoped = true
	res := Validate(c, ctx)
	if !res.IsValid || res.Discount != 10000 {
		t.Fatalf("got %+v, want valid with 10000", res)
	}
}

func TestValidateNeverWidensZeroScope(t *testing.T) {
	c, ctx := baseCoupon(), baseContext()
	c.Type, c.Value = FixedAmount, 5000
	c.ApplicableCourseID = "c1"
	ctx.Scoped = true

	res := Validate(c, ctx)
	if !res.IsValid || res.Discount != 0 {
		t.Fatalf("free scoped line: got %+v, want valid with 0", res)
	}

	ctx.Scoped = false
	if res := Validate(c, ctx); res.Discount != 5000 {
		t.Errorf("unscoped base: got %d, want 5000", res.Discount)
	}
}

func TestCheck(t *testing.T) {
	good := baseCoupon()
	if err := good.Check(); err != nil {
		t.Fatalf("valid coupon rejected: %v", err)
	}
	bad := []func(*Coupon){
		func(c *Coupon) { c.Code = "lower" },
		func(c *Coupon) { c.Value = 101 },
		func(c *Coupon) { c.Type = "bogus" },
		func(c *Coupon) { c.Issuer = IssuerInstructor },
		func(c *Coupon) { c.ValidTo = c.ValidFrom.Add(-time.Hour) },
		func(c *Coupon) { c.UsageLimit = -1 },
	}
	for i, mutate := range bad {
		c := baseCoupon()
		mutate(&c)
		if err := c.Check(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
