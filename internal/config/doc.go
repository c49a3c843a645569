// Package config loads the framer configuration file.
//
// The configuration lives in framer.json or framer.toml in the working
// directory (or the closest parent that has one). Keys that are absent keep
// their defaults; unknown keys are rejected.
//
// # Configuration File Structure
//
//	{
//	  "codec": {
//	    "headerOffset": 2,
//	    "lengthField": "2",
//	    "byteOrder": "big",
//	    "expireMs": 500,
//	    "maxFrameLength": 65539
//	  },
//	  "server": {
//	    "tcpAddress": ":7000",
//	    "httpAddress": ":7001",
//	    "webSocketPath": "/ws",
//	    "readTimeout": "60s",
//	    "maxSessions": 1024
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "framer"
//	  },
//	  "archive": {
//	    "bucket": "frames",
//	    "prefix": "sessions/"
//	  }
//	}
//
// The same keys are used in TOML, one table per section.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	opts, err := cfg.FramingOptions()
//	factory, err := framing.NewFactory(opts...)
package config
