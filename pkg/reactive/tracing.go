package reactive

import "go.opentelemetry.io/otel"

// defaultTracerName is the tracer name used by WithTracing.
const defaultTracerName = "reflow"

// WithTracing enables a span per propagation pass, resolved from the
// global OpenTelemetry tracer provider. Configure the provider in
// main() before creating stores:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//
// Each span carries the dirty source count, the number of cells marked,
// and the number of cells whose value changed; computation failures are
// recorded on the span.
func WithTracing() StoreOption {
	return WithTracerName(defaultTracerName)
}

// WithTracerName is WithTracing with an explicit tracer name.
func WithTracerName(name string) StoreOption {
	return func(s *Store) {
		s.tracer = otel.Tracer(name)
	}
}
