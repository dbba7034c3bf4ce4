// Package http exposes the bundle catalog over a gin router.
//
// Routes:
//
//	GET    /health
//	GET    /bundles              resident bundle status
//	GET    /bundles/:name
//	DELETE /bundles/:name        force unload
//	POST   /bundles/sweep        {"immediate", "unload_contents"}
//	GET    /assets?match=glob
//	POST   /assets/load          {"address"}
//	POST   /assets/release       {"address", "unload_contents"}
//	GET    /assets/content/*address
//	GET    /store                bundle files present, missing, orphaned
//	POST   /store/prune          delete orphaned files
//	POST   /store/prefetch       {"workers"}, download missing files
//	GET    /monitor/records
//	GET    /monitor/summary
//	POST   /monitor/start
//	POST   /monitor/stop
//	GET    /metrics/json
package http
