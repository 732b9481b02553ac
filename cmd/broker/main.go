// Package main runs the broker: the authoritative metadata store behind
// the /api/v2 HTTP surface.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/clustermeta/broker/broker"
	"github.com/clustermeta/broker/meta"
)

var (
	listenAddr         = flag.String("listen", ":8080", "HTTP listen address")
	metaFilePath       = flag.String("meta-file", "", "path to persist/restore metadata (disabled if empty)")
	enableOrderedProxy = flag.Bool("ordered-proxy", false, "restrict to a single cluster with forced ascending-index proxy pairing")
	persistInterval    = flag.Duration("persist-interval", 30*time.Second, "periodic re-store interval, 0 disables")
	failureQuorum      = flag.Int("failure-quorum", 2, "distinct reporters required before a proxy counts as failed")
	failureTTL         = flag.Duration("failure-ttl", 30*time.Second, "witness age after which a failure report is pruned")
	migrationLimit     = flag.Int("migration-limit", 1, "concurrent migrations CheckHostTolerance assumes per host")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	meta.GCO.Update(func(cfg *meta.BrokerConfig) {
		cfg.FailureQuorum = *failureQuorum
		cfg.FailureTTL = *failureTTL
		cfg.MigrationLimit = *migrationLimit
		cfg.MetaFilePath = *metaFilePath
		cfg.MetaSyncInterval = *persistInterval
	})

	store := meta.New(*enableOrderedProxy)

	var storage broker.MetaStorage
	if *metaFilePath != "" {
		storage = broker.NewFileMetaStorage(*metaFilePath)
	}

	srv := broker.NewServer(store, storage, broker.NewHTTPReplicator())
	if err := srv.RecoverFromMetaFile(); err != nil {
		glog.Errorf("broker: recover metadata: %v", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.StartPeriodicPersist(ctx, *persistInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Infof("broker: shutting down")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			glog.Errorf("broker: shutdown: %v", err)
		}
	}()

	if err := srv.ListenAndServe(*listenAddr); err != nil {
		glog.Errorf("broker: %v", err)
		return 1
	}
	return 0
}
