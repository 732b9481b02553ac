package broker

import "net/http"

// registerRoutes binds the /api/v2 surface onto mux, using Go's
// method-and-wildcard ServeMux patterns instead of a third-party router
// (see DESIGN.md for why). Every route is wrapped with s.instrument so
// RequestsTotal reflects real traffic per route and status class.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	const base = "/api/v2"

	route := func(pattern string, handler http.HandlerFunc) {
		mux.HandleFunc(pattern, s.instrument(pattern, handler))
	}

	route("GET "+base+"/version", s.handleVersion)

	route("GET "+base+"/metadata", s.handleGetMetadata)
	route("PUT "+base+"/metadata", s.handlePutMetadata)

	route("GET "+base+"/clusters/names", s.handleClusterNames)
	route("GET "+base+"/clusters/meta/{name}", s.handleGetCluster)
	route("GET "+base+"/clusters/info/{name}", s.handleClusterInfo)
	route("POST "+base+"/clusters/meta/{name}", s.handleCreateCluster)
	route("DELETE "+base+"/clusters/meta/{name}", s.handleDeleteCluster)
	route("PATCH "+base+"/clusters/nodes/{name}", s.handleAddNodes)
	route("PUT "+base+"/clusters/nodes/{name}", s.handleScaleToTotal)
	route("POST "+base+"/clusters/migrations/expand/{name}", s.handleMigrateExpand)
	route("POST "+base+"/clusters/migrations/shrink/{name}/{node_num}", s.handleMigrateShrink)
	route("POST "+base+"/clusters/migrations/auto/{name}/{node_num}", s.handleMigrateAuto)
	route("PUT "+base+"/clusters/migrations", s.handleCommitMigration)
	route("PATCH "+base+"/clusters/config/{name}", s.handleUpdateClusterConfig)
	route("PUT "+base+"/clusters/balance/{name}", s.handleBalanceCluster)

	route("POST "+base+"/proxies/meta", s.handleAddProxy)
	route("DELETE "+base+"/proxies/meta/{addr}", s.handleRemoveProxy)
	route("GET "+base+"/proxies/addresses", s.handleProxyAddresses)
	route("GET "+base+"/proxies/meta/{addr}", s.handleGetProxy)
	route("GET "+base+"/proxies/failed/addresses", s.handleFailedProxies)
	route("POST "+base+"/proxies/failover/{addr}", s.handleFailover)

	route("POST "+base+"/failures/{addr}/{reporter}", s.handleReportFailure)
	route("GET "+base+"/failures", s.handleFailedProxies)

	route("POST "+base+"/resources/failures/check", s.handleHostToleranceCheck)

	route("GET "+base+"/config", s.handleGetConfig)
	route("PUT "+base+"/config", s.handlePutConfig)

	route("GET "+base+"/epoch", s.handleGetEpoch)
	route("PUT "+base+"/epoch/recovery", s.handleEpochRecovery)
	route("PUT "+base+"/epoch/{e}", s.handleEpochForceBump)

	// Legacy alias for the canonical operation's misspelled name,
	// kept for compatibility and logged once per process lifetime.
	route("POST "+base+"/clusters/audo_delete_free_nodes/{name}", s.handleAutoDeleteFreeNodesLegacy)
	route("POST "+base+"/clusters/auto_delete_free_nodes/{name}", s.handleAutoDeleteFreeNodes)
}
