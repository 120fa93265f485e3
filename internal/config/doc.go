// Package config provides configuration parsing for hashsync servers.
//
// The configuration is stored in hashsync.json at the project root, or in
// hashsync.yaml when no JSON file exists. This package handles loading,
// saving, and validating configuration, and turns it into the format and
// default policy a hash.Controller uses.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "addr": "localhost:8787",
//	    "readTimeout": "15s",
//	    "eventsPerSecond": 20,
//	    "allowedOrigins": ["https://app.example.com"]
//	  },
//	  "format": {
//	    "kind": "template",
//	    "template": "{section}/{id}",
//	    "query": ["tab"]
//	  },
//	  "defaults": {"section": "home", "id": "index"},
//	  "store": {
//	    "kind": "s3",
//	    "bucket": "hashsync-snapshots",
//	    "prefix": "tabs/"
//	  },
//	  "metrics": {"enabled": true},
//	  "tracing": {"enabled": false}
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f, err := cfg.BuildFormat()
package config
