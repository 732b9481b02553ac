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

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(Version))
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Store.Dump())
}

func (s *Server) handlePutMetadata(w http.ResponseWriter, r *http.Request) {
	var snap meta.Snapshot
	if err := s.readJSON(r, &snap); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if err := s.Store.Restore(&snap); err != nil {
		s.writeError(w, err)
		return
	}
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, meta.GCO.Get())
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg meta.BrokerConfig
	if err := s.readJSON(r, &cfg); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	meta.GCO.Put(&cfg)
	s.writeJSON(w, http.StatusOK, meta.GCO.Get())
}

func (s *Server) handleGetEpoch(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int64{"global_epoch": s.Store.GlobalEpoch()})
}

func (s *Server) handleEpochForceBump(w http.ResponseWriter, r *http.Request) {
	e, err := strconv.ParseInt(r.PathValue("e"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid epoch"})
		return
	}
	if err := s.Store.ForceBumpAllEpoch(e); err != nil {
		s.writeError(w, err)
		return
	}
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, map[string]int64{"global_epoch": s.Store.GlobalEpoch()})
}

// handleEpochRecovery fans GETEPOCH out to every known proxy and sets
// global_epoch to the observed max, for use after a broker restart so the
// fresh process never issues an epoch a proxy has already seen.
func (s *Server) handleEpochRecovery(w http.ResponseWriter, r *http.Request) {
	if s.ProxyClient == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"global_epoch":     s.Store.GlobalEpoch(),
			"failed_addresses": []string{},
		})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	res := epochgossip.FetchMaxEpoch(ctx, s.ProxyClient, s.Store.ProxyAddresses(), 3*time.Second)
	epoch := s.Store.RecoverEpoch(res.MaxEpoch)
	s.afterMutation()
	glog.Infof("broker: epoch recovery set global_epoch=%d, %d proxies unreachable", epoch, len(res.Failed))
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"global_epoch":     epoch,
		"failed_addresses": res.Failed,
	})
}

func (s *Server) handleHostToleranceCheck(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MigrationLimit int `json:"migration_limit"`
	}
	if err := s.readJSON(r, &body); err != nil || body.MigrationLimit <= 0 {
		body.MigrationLimit = meta.GCO.Get().MigrationLimit
	}
	hosts := s.Store.CheckHostTolerance(body.MigrationLimit)
	s.writeJSON(w, http.StatusOK, map[string][]string{"hosts_cannot_fail": hosts})
}
