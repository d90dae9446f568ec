// Package telemetry installs the process-wide OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Options struct {
	// Stdout exports spans as pretty-printed JSON. When false the global
	// no-op provider is left in place.
	Stdout bool
	Writer io.Writer // defaults to os.Stdout
}

// Shutdown flushes and stops the provider.
type Shutdown func(context.Context) error

func Init(opts Options) (Shutdown, error) {
	if !opts.Stdout {
		return func(context.Context) error { return nil }, nil
	}
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
