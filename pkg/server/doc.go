// Package server serves markout pages over HTTP and keeps live pages in sync
// over WebSocket.
//
// # Routes
//
//	GET /healthz                 liveness probe
//	GET /metrics                 Prometheus metrics, when enabled
//	GET /_markout/live/<page>    live session (WebSocket)
//	GET /_markout/client.js      browser script driving live sessions
//	GET /<page>                  server-side rendered page
//
// A page path maps to a store name: "/" is "index", "/about" and
// "/about.html" are "about", "/blog/" is "blog/index".
//
// # Live Sessions
//
// A live session binds a fresh copy of the page to the connection. The
// server first sends a hello carrying the session id:
//
//	{"session": "host/abc-000001"}
//
// The client then assigns values by scope id and name:
//
//	{"scope": "1", "key": "name", "value": "Grace"}
//
// Each message is applied with the same semantics as Env.Assign, the graph
// is settled, and the DOM patches it produced are returned in order:
//
//	{"seq": 1, "patches": [{"op": "SetText", "scope": "1", "value": "Hello, Grace"}]}
//
// A message that cannot be applied gets a coded error and leaves the session
// open:
//
//	{"error": {"code": "E404", "category": "server", "message": "Scope not found", ...}}
//
// Messages of one session are applied one at a time; sessions are
// independent of each other.
//
// Pages including /_markout/client.js open their session on load and apply
// patches as they arrive; page code calls markout.assign(scope, key, value).
package server
