package mongorest

import (
	"context"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/detectors/aws/ec2"
	"go.opentelemetry.io/contrib/detectors/aws/ecs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	metricsExportTimeout = 30 * time.Second
	serviceName          = "mongorest"
)

// initOtel exports traces and query metrics to the configured collector
// over a single gRPC connection. It is a no-op unless the tracer section
// is enabled.
func (e *envState) initOtel(ctx context.Context) error {
	conf := e.settings.Tracer
	if !conf.Enabled {
		return nil
	}

	creds := credentials.NewTLS(nil)
	if conf.Insecure {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(conf.CollectorEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return errors.Wrapf(err, "opening gRPC connection to '%s'", conf.CollectorEndpoint)
	}

	traceExporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(otlptracegrpc.WithGRPCConn(conn)))
	if err != nil {
		grip.Warning(conn.Close())
		return errors.Wrap(err, "initializing otel trace exporter")
	}
	metricsExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		catcher := grip.NewBasicCatcher()
		catcher.Add(err)
		catcher.Wrap(traceExporter.Shutdown(ctx), "trace exporter shutdown")
		catcher.Wrap(conn.Close(), "closing gRPC connection")
		return errors.Wrap(catcher.Resolve(), "initializing otel metrics exporter")
	}

	r := hostResource(ctx)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
		sdktrace.WithRawSpanLimits(sdktrace.SpanLimits{
			AttributeValueLengthLimit:   OtelAttributeMaxLength,
			AttributeCountLimit:         sdktrace.DefaultAttributeCountLimit,
			EventCountLimit:             sdktrace.DefaultEventCountLimit,
			LinkCountLimit:              sdktrace.DefaultLinkCountLimit,
			AttributePerEventCountLimit: sdktrace.DefaultAttributePerEventCountLimit,
			AttributePerLinkCountLimit:  sdktrace.DefaultAttributePerLinkCountLimit,
		}),
	)
	tp.RegisterSpanProcessor(utility.NewAttributeSpanProcessor())

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(r),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricsExporter,
			sdkmetric.WithInterval(conf.metricsInterval()),
			sdkmetric.WithTimeout(metricsExportTimeout),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		grip.Error(errors.Wrap(err, "otel error"))
	}))

	e.closers["otel"] = func(ctx context.Context) error {
		catcher := grip.NewBasicCatcher()
		catcher.Wrap(tp.Shutdown(ctx), "trace provider shutdown")
		catcher.Wrap(mp.Shutdown(ctx), "meter provider shutdown")
		catcher.Wrap(traceExporter.Shutdown(ctx), "trace exporter shutdown")
		catcher.Wrap(conn.Close(), "closing gRPC connection")

		return catcher.Resolve()
	}

	return nil
}

func hostResource(ctx context.Context) *resource.Resource {
	r := resource.NewSchemaless(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(BuildRevision),
	)

	merged, err := addEnvironmentAttributes(ctx, r)
	grip.Error(errors.Wrap(err, "adding environment attributes"))
	if err == nil {
		r = merged
	}

	return r
}

// addEnvironmentAttributes adds EC2 instance and ECS container attributes
// to the resource. Detectors outside those environments add nothing.
func addEnvironmentAttributes(ctx context.Context, r *resource.Resource) (*resource.Resource, error) {
	for name, detector := range map[string]resource.Detector{
		"ec2": ec2.NewResourceDetector(),
		"ecs": ecs.NewResourceDetector(),
	} {
		detected, err := detector.Detect(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "detecting resource '%s'", name)
		}
		merged, err := resource.Merge(r, detected)
		if err != nil {
			return nil, errors.Wrapf(err, "merging resource for detector '%s'", name)
		}
		r = merged
	}

	return r, nil
}
