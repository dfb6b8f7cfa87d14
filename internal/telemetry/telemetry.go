// Package telemetry wires the OpenTelemetry SDK for the quiet binaries.
package telemetry

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

type Options struct {
	ServiceName string

	// LogWriter receives structured log records, nil disables logging.
	LogWriter io.Writer

	// TraceWriter receives finished spans when no OTLP endpoint is
	// configured, nil disables tracing in that case.
	TraceWriter io.Writer

	// MetricWriter receives metrics every MetricInterval, nil disables metrics.
	MetricWriter   io.Writer
	MetricInterval time.Duration
}

// OTLPConfigured reports whether the standard OTLP endpoint variables are set.
func OTLPConfigured() bool {
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" ||
		os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") != ""
}

// Setup installs global tracer, logger and meter providers. The returned
// function flushes and stops all of them.
func Setup(ctx context.Context, opts Options) (func(context.Context) error, error) {
	var shutdownFuncs []func(context.Context) error
	var err error

	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	handleErr := func(inErr error) {
		err = errors.Join(inErr, shutdown(ctx))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
		),
	)
	if err != nil {
		handleErr(err)
		return shutdown, err
	}

	traceProvider, err := newTracerProvider(ctx, res, opts.TraceWriter)
	if err != nil {
		handleErr(err)
		return shutdown, err
	}
	if traceProvider != nil {
		shutdownFuncs = append(shutdownFuncs, traceProvider.Shutdown)
		otel.SetTracerProvider(traceProvider)
	}

	if opts.LogWriter != nil {
		loggerProvider, err := newLoggerProvider(res, opts.LogWriter)
		if err != nil {
			handleErr(err)
			return shutdown, err
		}
		shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)
		global.SetLoggerProvider(loggerProvider)
	}

	if opts.MetricWriter != nil {
		meterProvider, err := newMeterProvider(res, opts.MetricWriter, opts.MetricInterval)
		if err != nil {
			handleErr(err)
			return shutdown, err
		}
		shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
		otel.SetMeterProvider(meterProvider)
	}

	return shutdown, err
}

func newTracerProvider(ctx context.Context, res *resource.Resource, w io.Writer) (*trace.TracerProvider, error) {
	var exp trace.SpanExporter
	var err error

	switch {
	case OTLPConfigured():
		exp, err = otlptracehttp.New(ctx, otlptracehttp.WithInsecure())
	case w != nil:
		exp, err = stdouttrace.New(stdouttrace.WithWriter(w))
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	traceProvider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	return traceProvider, nil
}

func newLoggerProvider(res *resource.Resource, w io.Writer) (*sdklog.LoggerProvider, error) {
	exp, err := stdoutlog.New(stdoutlog.WithWriter(w))
	if err != nil {
		return nil, err
	}

	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)),
		sdklog.WithResource(res),
	)
	return loggerProvider, nil
}

func newMeterProvider(res *resource.Resource, w io.Writer, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, err
	}

	if interval <= 0 {
		interval = time.Minute
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)
	return meterProvider, nil
}
