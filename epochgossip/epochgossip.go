// Package epochgossip recovers a broker's global epoch from live proxies
// after a restart, and fences the two-phase auto-scale protocol on every
// affected proxy having observed a given epoch before slots are reassigned.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package epochgossip

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/semaphore"
	"k8s.io/apimachinery/pkg/util/wait"
)

// ProxyClient abstracts the UMCTL GETEPOCH-equivalent call the broker issues
// against a proxy; production wiring dials the real proxy control port,
// tests supply a stub.
type ProxyClient interface {
	GetEpoch(ctx context.Context, proxyAddr string) (int64, error)
}

// maxFanOut bounds how many proxies are gossiped concurrently, the same
// bounded-parallelism discipline the coordinator's loops use for their own
// per-proxy fan-out.
const maxFanOut = 16

// Result is the outcome of FetchMaxEpoch.
type Result struct {
	MaxEpoch int64
	Failed   []string
}

// FetchMaxEpoch fans out GetEpoch to every proxy with a bounded per-call
// timeout and returns the highest epoch observed plus the addresses that
// didn't answer in time.
func FetchMaxEpoch(ctx context.Context, client ProxyClient, proxies []string, perCallTimeout time.Duration) Result {
	sem := semaphore.NewWeighted(maxFanOut)
	var (
		mu     sync.Mutex
		max    int64
		failed []string
		wg     sync.WaitGroup
	)
	for _, addr := range proxies {
		addr := addr
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			failed = append(failed, addr)
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			callCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
			defer cancel()
			epoch, err := client.GetEpoch(callCtx, addr)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				glog.Warningf("epochgossip: GetEpoch(%s) failed: %v", addr, err)
				failed = append(failed, addr)
				return
			}
			if epoch > max {
				max = epoch
			}
		}()
	}
	wg.Wait()
	return Result{MaxEpoch: max, Failed: failed}
}

// WaitForProxyEpoch polls every listed proxy until it reports an epoch >=
// target or ctx's deadline expires, returning the first proxy that timed
// out (empty string if all converged). Used between AutoScaleNodeNumber's
// two phases so the rebalance never races a proxy that hasn't installed the
// newly allocated chunk yet.
func WaitForProxyEpoch(ctx context.Context, client ProxyClient, proxies []string, target int64, pollInterval time.Duration) (timedOut string, err error) {
	pending := make(map[string]bool, len(proxies))
	for _, p := range proxies {
		pending[p] = true
	}

	pollErr := wait.PollUntilContextCancel(ctx, pollInterval, true, func(pollCtx context.Context) (bool, error) {
		for addr := range pending {
			epoch, gerr := client.GetEpoch(pollCtx, addr)
			if gerr != nil {
				glog.V(4).Infof("epochgossip: waiting on %s: %v", addr, gerr)
				continue
			}
			if epoch >= target {
				delete(pending, addr)
			}
		}
		return len(pending) == 0, nil
	})
	if pollErr != nil {
		for addr := range pending {
			return addr, pollErr
		}
		return "", pollErr
	}
	return "", nil
}
