// Package broker wires meta.MetaStore behind the versioned HTTP API,
// persistence, and best-effort replication.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clustermeta/broker/epochgossip"
	"github.com/clustermeta/broker/meta"
)

// Version is the broker's reported build version, answered by GET /version.
const Version = "0.1.0"

// Server holds the broker's live MetaStore plus its I/O collaborators and
// exposes the /api/v2 HTTP surface.
type Server struct {
	Store      *meta.MetaStore
	Storage    MetaStorage
	Replicator MetaReplicator
	Metrics    *Metrics
	httpServer *http.Server

	// ProxyClient dials real proxies for GETEPOCH-equivalent calls. No
	// on-wire proxy protocol is implemented here, so this is the one
	// collaborator that reaches outside the broker's own process; nil
	// means epoch gossip is skipped and auto-scale's second phase proceeds
	// immediately, which is correct for tests and for deployments that
	// don't need the wait-for-epoch fence.
	ProxyClient epochgossip.ProxyClient

	legacyAliasWarned sync.Once
}

// NewServer wires a Server. storage/replicator may be nil, disabling
// persistence/replication respectively — useful in tests.
func NewServer(store *meta.MetaStore, storage MetaStorage, replicator MetaReplicator) *Server {
	s := &Server{
		Store:      store,
		Storage:    storage,
		Replicator: replicator,
		Metrics:    NewMetrics(prometheus.DefaultRegisterer),
	}
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())
	s.httpServer = &http.Server{Handler: mux}
	return s
}

// RecoverFromMetaFile loads a persisted snapshot (if storage is configured
// and the file exists) and restores it into Store on startup.
func (s *Server) RecoverFromMetaFile() error {
	if s.Storage == nil {
		return nil
	}
	snap, err := s.Storage.Load()
	if err != nil {
		glog.Warningf("broker: no recoverable meta file: %v", err)
		return nil
	}
	if err := s.Store.Restore(snap); err != nil {
		return err
	}
	glog.Infof("broker: recovered metadata at global epoch %d", s.Store.GlobalEpoch())
	return nil
}

// StartPeriodicPersist re-stores the full snapshot unconditionally every
// interval, independent of the auto_update_meta_file-on-mutation path,
// as a backstop independent of the on-mutation persist path.
func (s *Server) StartPeriodicPersist(ctx context.Context, interval time.Duration) {
	if s.Storage == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.persist()
			}
		}
	}()
}

// persist takes a snapshot under the store's read lock and then performs
// I/O after releasing it — the store-level lock is never held across a
// suspension point.
func (s *Server) persist() {
	snap := s.Store.Dump()
	if s.Storage != nil {
		if err := s.Storage.Save(snap); err != nil {
			glog.Errorf("broker: persist meta file failed: %v", err)
		}
	}
	if s.Replicator != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Replicator.SyncMeta(ctx, snap); err != nil {
				glog.Warningf("broker: replicate meta failed: %v", err)
			}
		}()
	}
}

// afterMutation is called by every mutating handler on success; it triggers
// auto_update_meta_file and best-effort replication without holding any
// store lock, and refreshes the process-level epoch/cluster-count gauges.
func (s *Server) afterMutation() {
	s.Metrics.GlobalEpoch.Set(float64(s.Store.GlobalEpoch()))
	s.Metrics.ClusterCount.Set(float64(len(s.Store.ClusterNames())))
	s.persist()
}

// ListenAndServe starts the HTTP listener, blocking until it returns (e.g.
// on Shutdown).
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer.Addr = addr
	glog.Infof("broker: listening on %s", addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
