// Package server serves the hashsync HTTP API and the websocket bridge.
//
// # Routes
//
//	GET    /healthz              liveness probe
//	GET    /api/format?k=v&...   format the query parameters: {"hash": "..."}
//	POST   /api/format           {"data": {...}} -> {"hash": "..."}
//	POST   /api/parse            {"hash": "..."} -> {"data": {...}, "ok": true}
//	POST   /api/diff             {"a": {...}, "b": {...}} -> {"key": {"op": ..., "value": ...}}
//	GET    /api/snapshots        {"ids": [...]}
//	GET    /api/snapshots/{id}   the saved snapshot
//	DELETE /api/snapshots/{id}
//	GET    /ws                   websocket bridge (see package remote)
//	GET    /metrics              Prometheus metrics, when a collector is set
//
// Every websocket connection gets its own hash.Controller over a
// remote.Location. Change notifications are sent to the tab as "change"
// messages and saved to the Store under the connection id. A tab can resume
// a session by sending its id in the hello or as ?session=<id>; when it
// connects with an empty hash the saved data is written back to it.
//
// # Usage
//
//	srv := server.New(server.Config{
//	    Addr:    ":8787",
//	    Format:  format.NewQuery(),
//	    Metrics: metrics.New(),
//	})
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := srv.ListenAndServe(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
