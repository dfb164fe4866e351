// Package telemetry provides OpenTelemetry tracing and metrics for taskd.
//
// Spans and OTel metrics are exported over OTLP (gRPC or HTTP/protobuf) to a
// collector. Prometheus metrics served on /metrics are registered separately
// by the http and store packages.
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tracer := tel.Tracer("taskd.store")
//	ctx, span := tracer.Start(ctx, "store.ListTasksByUser")
//	defer span.End()
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
