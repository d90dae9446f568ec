package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitStdoutExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Init(Options{Stdout: true, Writer: &buf})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "unit.span")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), "unit.span") {
		t.Fatalf("exported spans missing unit.span: %s", buf.String())
	}
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(Options{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}
