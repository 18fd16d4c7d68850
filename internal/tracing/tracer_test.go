package tracing

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

func TestProviderWithoutExporter(t *testing.T) {
	tp, err := InitTracerProvider("commerce-test", "", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Errorf("bare context trace id %q", got)
	}
	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	if id := TraceIDFromContext(ctx); len(id) != 32 {
		t.Errorf("trace id %q", id)
	}
}
