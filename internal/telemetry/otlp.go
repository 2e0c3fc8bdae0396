package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/gneuro/tgrelay/internal/core"
)

// ModuleID is the tracing module identifier.
const ModuleID = "telemetry.otlp"

// TracerProviderService is the service registry key of the installed
// trace.TracerProvider.
const TracerProviderService = "telemetry.tracer_provider"

// Version is reported as service.version. Set by the build.
var Version = "dev"

func init() {
	core.RegisterModule(&OTLP{})
}

var (
	_ core.Configurable = (*OTLP)(nil)
	_ core.Provisioner  = (*OTLP)(nil)
	_ core.Validator    = (*OTLP)(nil)
	_ core.Starter      = (*OTLP)(nil)
	_ core.Stopper      = (*OTLP)(nil)
)

// OTLP exports traces over OTLP/HTTP. Once started its provider is the
// global otel provider, so every otel.Tracer in the process reports to it.
// Without this module the global no-op provider stays in place.
type OTLP struct {
	config   Config
	logger   *slog.Logger
	provider *sdktrace.TracerProvider

	// exporter replaces the OTLP exporter in tests.
	exporter sdktrace.SpanExporter
}

// ModuleInfo implements core.Module.
func (o *OTLP) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &OTLP{} },
	}
}

// Configure implements core.Configurable.
func (o *OTLP) Configure(node *yaml.Node) error {
	if err := node.Decode(&o.config); err != nil {
		return fmt.Errorf("telemetry: decode config: %w", err)
	}
	o.config.defaults()
	return nil
}

// Provision implements core.Provisioner. It builds the exporter and the
// tracer provider without installing it.
func (o *OTLP) Provision(ctx *core.AppContext) error {
	o.config.defaults()
	o.logger = ctx.Logger

	exp := o.exporter
	if exp == nil {
		var err error
		exp, err = otlptracehttp.New(context.TODO(), o.exporterOptions()...)
		if err != nil {
			return fmt.Errorf("telemetry: create exporter: %w", err)
		}
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", o.config.ServiceName),
		attribute.String("service.version", Version),
	)

	o.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(*o.config.SampleRatio))),
	)
	ctx.RegisterService(TracerProviderService, trace.TracerProvider(o.provider))
	return nil
}

func (o *OTLP) exporterOptions() []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(o.config.Endpoint)}
	if o.config.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(o.config.URLPath))
	}
	if o.config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(o.config.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(o.config.Headers))
	}
	return opts
}

// Validate implements core.Validator.
func (o *OTLP) Validate() error {
	return o.config.validate()
}

// Start implements core.Starter.
func (o *OTLP) Start() error {
	otel.SetTracerProvider(o.provider)
	o.logger.Info("otlp tracing enabled",
		"endpoint", o.config.Endpoint,
		"service", o.config.ServiceName,
		"sample_ratio", *o.config.SampleRatio,
	)
	return nil
}

// Stop implements core.Stopper. Pending spans are flushed; tracers obtained
// from the provider become no-ops afterwards.
func (o *OTLP) Stop(ctx context.Context) error {
	if o.provider == nil {
		return nil
	}
	if err := o.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown: %w", err)
	}
	return nil
}
