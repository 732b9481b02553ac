package broker

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/clustermeta/broker/epochgossip"
	"github.com/clustermeta/broker/meta"
)

func (s *Server) handleClusterNames(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	s.writeJSON(w, http.StatusOK, pageStrings(s.Store.ClusterNames(), offset, limit))
}

func (s *Server) handleGetCluster(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	cluster, nodes, err := s.Store.Cluster(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"cluster": cluster, "nodes": nodes})
}

func (s *Server) handleClusterInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.Store.ClusterInfo(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCreateCluster(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NodeNumber int `json:"node_number"`
	}
	if err := s.readJSON(r, &body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	cluster, err := s.Store.AddCluster(r.PathValue("name"), body.NodeNumber)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, cluster)
}

func (s *Server) handleDeleteCluster(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.RemoveCluster(r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleAddNodes(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NodeNumber int `json:"node_number"`
	}
	if err := s.readJSON(r, &body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	nodes, err := s.Store.AutoAddNodes(r.PathValue("name"), body.NodeNumber)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleScaleToTotal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClusterNodeNumber int `json:"cluster_node_number"`
	}
	if err := s.readJSON(r, &body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	tasks, err := s.Store.AutoScaleUpNodes(r.PathValue("name"), body.ClusterNodeNumber)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Metrics.MigrationTasks.WithLabelValues("auto_scale_up").Add(float64(len(tasks)))
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleMigrateExpand(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.Store.MigrateSlots(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Metrics.MigrationTasks.WithLabelValues("expand").Add(float64(len(tasks)))
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleMigrateShrink(w http.ResponseWriter, r *http.Request) {
	removeNum, err := strconv.Atoi(r.PathValue("node_num"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid node_num"})
		return
	}
	tasks, err := s.Store.MigrateSlotsToScaleDown(r.PathValue("name"), removeNum)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Metrics.MigrationTasks.WithLabelValues("shrink").Add(float64(len(tasks)))
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, tasks)
}

// handleMigrateAuto runs the two-phase auto_scale_node_number: allocate the
// new chunks (phase 1), wait for every newly added proxy to report the
// phase-1 epoch (via epochgossip, skipped if no ProxyClient is wired), then
// rebalance slots across the whole cluster (phase 2). Both phases run under
// one scale-lock hold acquired here, so no other scaling operation can
// interleave between the two phases.
func (s *Server) handleMigrateAuto(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	totalNodeNum, err := strconv.Atoi(r.PathValue("node_num"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid node_num"})
		return
	}

	if err := s.Store.TryLockScale(); err != nil {
		s.writeError(w, err)
		return
	}
	defer s.Store.UnlockScale()

	epoch, addedProxies, err := s.Store.AutoScaleNodeNumberPhase1(name, totalNodeNum)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.afterMutation()

	if s.ProxyClient != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		timedOut, werr := epochgossip.WaitForProxyEpoch(ctx, s.ProxyClient, addedProxies, epoch, 200*time.Millisecond)
		cancel()
		if werr != nil {
			glog.Errorf("broker: auto-scale phase1->phase2 wait failed on %s: %v", timedOut, werr)
			s.writeError(w, meta.NewErr(meta.ProxyNotSync, "proxy %s never reported epoch %d: %v", timedOut, epoch, werr))
			return
		}
	}

	tasks, err := s.Store.AutoScaleNodeNumberPhase2(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Metrics.MigrationTasks.WithLabelValues("auto").Add(float64(len(tasks)))
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCommitMigration(w http.ResponseWriter, r *http.Request) {
	var task meta.MigrationMeta
	if err := s.readJSON(r, &task); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if err := s.Store.CommitMigration(task); err != nil {
		s.writeError(w, err)
		return
	}
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleUpdateClusterConfig(w http.ResponseWriter, r *http.Request) {
	var kv map[string]string
	if err := s.readJSON(r, &kv); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if err := s.Store.UpdateClusterConfig(r.PathValue("name"), kv); err != nil {
		s.writeError(w, err)
		return
	}
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleBalanceCluster(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.BalanceClusterMasters(r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleAutoDeleteFreeNodesLegacy(w http.ResponseWriter, r *http.Request) {
	s.legacyAliasWarned.Do(func() {
		glog.Warningf("broker: request hit deprecated audo_delete_free_nodes path alias, use auto_delete_free_nodes")
	})
	s.handleAutoDeleteFreeNodes(w, r)
}

func (s *Server) handleAutoDeleteFreeNodes(w http.ResponseWriter, r *http.Request) {
	released, err := s.Store.AutoDeleteFreeNodes(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, map[string]int{"released": released})
}
