// Package server runs framing decoders over live connections.
//
// Every accepted connection, raw TCP or WebSocket, becomes a Session with
// its own framing.Decoder. The session read loop feeds each chunk to the
// decoder and hands every completed frame to the application Handler:
//
//	factory := framing.MustFactory()
//	srv := server.New(server.DefaultConfig(), factory, server.Echo)
//	srv.Use(middleware.OpenTelemetry())
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Frame Lifetime
//
// A frame passed to Handler.HandleFrame may alias the connection's read
// buffer when the chunk was exactly one frame. It is valid only until the
// handler returns; copy it to keep it.
//
// # Errors
//
// A handler error closes the session. A handler panic is recovered,
// logged with its stack and counted in the session stats, and the session
// keeps reading.
//
// # HTTP Surface
//
// HTTPHandler serves the WebSocket endpoint, /healthz, /stats and, when
// set, /metrics, on a chi router.
package server
