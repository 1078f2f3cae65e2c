// Package config loads the configuration of a markout site.
//
// The configuration lives in markout.json (or markout.yaml) at the site
// root. Both files are optional; missing fields take their defaults. Before
// the file is read, .env and .env.local in the same directory are loaded
// into the process environment without overriding variables already set.
// MARKOUT_* variables then override the file.
//
// # Configuration File Structure
//
//	{
//	  "port": 3000,
//	  "host": "localhost",
//	  "docroot": "pages",
//	  "store": "s3",
//	  "s3": {"bucket": "my-site", "prefix": "pages/", "region": "eu-west-1"},
//	  "metrics": {"enabled": true},
//	  "tracing": {"enabled": true},
//	  "live": {"enabled": true, "heartbeat": "30s", "maxMessageSize": 65536},
//	  "shutdownTimeout": "10s",
//	  "logLevel": "info"
//	}
//
// # Environment
//
//	MARKOUT_PORT, MARKOUT_HOST, MARKOUT_DOCROOT, MARKOUT_STORE,
//	MARKOUT_S3_BUCKET, MARKOUT_S3_PREFIX, MARKOUT_S3_REGION, MARKOUT_S3_ENDPOINT,
//	MARKOUT_METRICS, MARKOUT_TRACING, MARKOUT_LIVE, MARKOUT_LOG_LEVEL
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Listening on", cfg.Address())
package config
