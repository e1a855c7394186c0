package otel

import (
	"time"

	hostmetrics "go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
)

// StartRuntimeMetrics starts Go runtime (memory, GC) and host (CPU,
// network) metric collection on the current meter provider. Long running
// commands such as the load generator call it after Init.
func StartRuntimeMetrics() error {
	mp := GetMeterProvider()

	if err := runtime.Start(
		runtime.WithMeterProvider(mp),
		runtime.WithMinimumReadMemStatsInterval(30*time.Second),
	); err != nil {
		return err
	}

	return hostmetrics.Start(hostmetrics.WithMeterProvider(mp))
}
