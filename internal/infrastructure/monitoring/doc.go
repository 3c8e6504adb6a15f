/*
Package monitoring provides metrics collection for the network sandbox.

# Overview

Metrics are registered on a per-instance Prometheus registry and cover the
debug server's HTTP traffic, computer lifecycle, bytes moved by sandboxed
connections, and the events queued to computers.

# Usage

	metrics := monitoring.NewMetrics()
	defer metrics.Close()

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "http", "request")
	// ... perform operation ...
	timer.Stop("success")

Resource groups are exported through a collector that reads their live
counts at scrape time:

	metrics.RegisterResources(manager.ResourceCounts)
*/
package monitoring
