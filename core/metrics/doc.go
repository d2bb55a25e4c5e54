// Package metrics holds the relay's process-wide counters and renders them in the
// Prometheus text exposition format.
//
// A Registry is an ordinary value: components receive it by pointer, and tests
// build a fresh one each. Counters are atomics exposed to Prometheus through
// function-backed collectors, so a Snapshot always agrees with what a scrape sees.
//
//	reg := metrics.New(metrics.WithPrefix("relay"))
//	reg.ConnectionOpened()
//	text, err := reg.Render()
//
// Push export to a Prometheus Pushgateway is best-effort: failures are logged
// and never returned to callers of PushExport.
package metrics
