/*
Package servers runs the gateway's HTTP server.

The server mounts every API handler on one chi router behind request logging
(flashbots httplogger) and latency metrics, and adds the operational routes:

  - /livez - process is up
  - /readyz - not draining and every registered dependency check passes
  - /drain, /undrain - toggle readiness for load balancer rotation
  - /debug/pprof - when EnablePprof is set

Prometheus metrics are served by a separate listener on MetricsAddr.

# Example Usage

	cfg := &servers.ServerConfig{
	    ListenAddr:    ":8080",
	    MetricsAddr:   ":9090",
	    Log:           logger,
	    DrainDuration: 30 * time.Second,
	    ReadTimeout:   60 * time.Second,
	    WriteTimeout:  30 * time.Second,
	}

	server, err := servers.New(cfg, metricsSrv, []servers.RouteRegistrar{metadataHandler, statusHandler})
	if err != nil {
	    log.Fatalf("Failed to create server: %v", err)
	}
	server.RunInBackground()
	defer server.Shutdown()
*/
package servers
