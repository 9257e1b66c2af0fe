/*
Package monitoring provides Prometheus metrics for the guard and its
companion server.

# Overview

Guard metrics are fed from the event bus: recoveries by kind and reason,
nodes removed by sweeps, operations cancelled by the watchdog, excessive
render signals, modal transitions and orphaned state detections. Sampled
gauges (pending operations, open modals, idle time) are refreshed by the
server from a guard snapshot. HTTP and WebSocket metrics cover the
companion server itself.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	unsubscribe := metrics.Observe(g.Bus())
	defer unsubscribe()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
