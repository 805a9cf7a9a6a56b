// Package instrumentation provides OpenTelemetry instrumentation for the
// authorization bridge: metric instruments for the OAuth flow and
// provider API calls, plus tracer access for the embedding application.
//
// When disabled (the default Config zero value), no-op providers are
// used and recording has zero overhead:
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName: "authbridge",
//		Enabled:     true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	server.SetInstrumentation(inst)
package instrumentation
