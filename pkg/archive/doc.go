// Package archive records the frames delivered on each session and
// uploads them to object storage when the session closes.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	sink := archive.NewS3Sink(archive.S3Config{
//	    Client: s3.NewFromConfig(cfg),
//	    Bucket: "frames",
//	    Prefix: "sessions/",
//	})
//	srv.Use(archive.Middleware(sink))
//	sink.Attach(srv.Sessions())
//	defer sink.Shutdown(ctx)
//
// Archiving is best-effort: failures are logged and never interrupt the
// session.
package archive
