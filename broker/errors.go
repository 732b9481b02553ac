package broker

import (
	"net/http"

	"github.com/clustermeta/broker/meta"
)

// statusFor maps a meta.Kind to the HTTP status it should surface as:
// validation errors 400, conflicts 409, missing entities 404,
// synchronization/cross-proxy failures 500.
func statusFor(kind meta.Kind) int {
	switch kind {
	case meta.ClusterNotFound, meta.ProxyNotFound, meta.MigrationTaskNotFound, meta.FreeNodeNotFound:
		return http.StatusNotFound
	case meta.InvalidNodeNum, meta.InvalidClusterName, meta.InvalidMigrationTask,
		meta.InvalidProxyAddress, meta.InvalidConfig, meta.MissingIndex, meta.SlotsAlreadyEven:
		return http.StatusBadRequest
	case meta.SyncError, meta.ProxyNotSync:
		return http.StatusInternalServerError
	case meta.InUse, meta.NotInUse, meta.NoAvailableResource, meta.ResourceNotBalance,
		meta.AlreadyExisted, meta.NodeNumAlreadyEnough, meta.MigrationRunning,
		meta.InvalidMetaVersion, meta.SmallEpoch, meta.ProxyResourceOutOfOrder,
		meta.OrderedProxyEnabled, meta.OneClusterAlreadyExisted, meta.NodeNumberChanging,
		meta.FreeNodeFound:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError classifies err (a *meta.Error if the store produced it, some
// other error otherwise) and writes the matching status plus a JSON body
// {"error": kind, "message": msg}.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if merr, ok := meta.AsError(err); ok {
		s.writeJSON(w, statusFor(merr.Kind), map[string]string{
			"error":   merr.Kind.String(),
			"message": merr.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "Internal",
		"message": err.Error(),
	})
}
