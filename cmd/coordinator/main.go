// Package main runs the coordinator: the four control loops that drive one
// broker's proxies toward its MetaStore state.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clustermeta/broker/coordinator"
)

var (
	brokerAddr   = flag.String("broker", "http://127.0.0.1:8080", "broker base URL")
	metricsAddr  = flag.String("metrics-listen", ":9090", "Prometheus /metrics listen address")
	reporterID   = flag.String("reporter-id", "", "identity this coordinator reports failures under (defaults to hostname)")
	callTimeout  = flag.Duration("call-timeout", 2*time.Second, "per-RPC timeout for both broker and proxy calls")
	loopInterval = flag.Duration("loop-interval", 3*time.Second, "delay between clean iterations of each control loop")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	id := *reporterID
	if id == "" {
		host, err := os.Hostname()
		if err != nil {
			host = fmt.Sprintf("coordinator-%d", os.Getpid())
		}
		id = host
	}

	broker := coordinator.NewHTTPBrokerClient(*brokerAddr, *callTimeout)
	proxy := coordinator.NewHTTPProxyClient(*callTimeout)

	c := coordinator.New(broker, proxy, id, prometheus.DefaultRegisterer)
	c.CallTimeout = *callTimeout
	c.Interval = *loopInterval

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Errorf("coordinator: metrics listener: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Infof("coordinator: shutting down")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	glog.Infof("coordinator: reporter=%s broker=%s starting control loops", id, *brokerAddr)
	c.Run(ctx)
	return 0
}
