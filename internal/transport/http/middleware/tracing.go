package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingOptions customises the tracing middleware.
type TracingOptions struct {
	Service        string
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	Additional     []otelgin.Option
}

// Tracing starts a server span per request, continuing any propagated parent.
func Tracing(opts TracingOptions) gin.HandlerFunc {
	service := opts.Service
	if service == "" {
		service = "learnstore"
	}

	options := make([]otelgin.Option, 0, len(opts.Additional)+2)
	if opts.TracerProvider != nil {
		options = append(options, otelgin.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgin.WithPropagators(opts.Propagators))
	}
	options = append(options, opts.Additional...)

	return otelgin.Middleware(service, options...)
}
