package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewNumber returns a human-facing order number such as ORD-20260301-3F2A9C1B.
func NewNumber(now time.Time) string {
	return "ORD-" + now.UTC().Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:8])
}
