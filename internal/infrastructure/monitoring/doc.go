/*
Package monitoring provides Prometheus metrics for coordinator and worker runs.

# Overview

Each process owns one Metrics value registered on a private registry. The
coordinator records distribution progress (chunks, stops, remaining trials),
control transitions and worker lifecycle; workers running in-process with the
memory transport additionally record accumulator merges and chunk compute time.

# Usage

	metrics := monitoring.NewMetrics()
	metrics.RecordChunk(chunk, remaining)

	timer := monitoring.NewTimer(metrics)
	hits := estimator.Execute(n, rng)
	timer.Stop()

# Metrics Endpoint

The status API serves the private registry:

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
*/
package monitoring
