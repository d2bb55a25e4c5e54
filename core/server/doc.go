// Package server wraps http.Server with graceful shutdown and errgroup-friendly
// lifecycle helpers.
//
//	srv, err := server.NewFromConfig(cfg.Server,
//		server.WithLogger(log),
//		server.WithOnShutdown(relay.CloseAll),
//	)
//	if err != nil {
//		return err
//	}
//
//	eg, ctx := errgroup.WithContext(ctx)
//	eg.Go(srv.Run(ctx, handler))
//	return eg.Wait()
//
// Configuration is read from HOST, PORT and SERVER_* environment variables
// through Config. Setting both SERVER_TLS_CERT_FILE and SERVER_TLS_KEY_FILE
// enables HTTPS with a TLS 1.2 minimum.
package server
