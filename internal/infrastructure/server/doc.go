// Package server assembles the optional status API of a coordinator run.
//
// Middleware stack, outermost first:
//   - gin.Recovery
//   - request metrics (monitoring.Middleware)
//   - CORS (middleware.CORS)
//   - per-client rate limiting when configured
//
// Example Usage:
//
//	srv, err := server.NewServer(cfg.Status, cfg.Logging.Development, coord, metrics, logger)
//	if err != nil {
//	    return err
//	}
//	srv.Start()
//	defer srv.Shutdown(ctx)
package server
