package epochgossip

import (
	"context"
	"sync"
	"testing"
	"time"
)

type stubClient struct {
	mu     sync.Mutex
	epochs map[string]int64
	fail   map[string]bool
}

func (s *stubClient) GetEpoch(_ context.Context, addr string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[addr] {
		return 0, context.DeadlineExceeded
	}
	return s.epochs[addr], nil
}

func (s *stubClient) bump(addr string, e int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs[addr] = e
}

func TestFetchMaxEpoch(t *testing.T) {
	client := &stubClient{epochs: map[string]int64{"p0": 3, "p1": 7, "p2": 5}, fail: map[string]bool{"p3": true}}
	res := FetchMaxEpoch(context.Background(), client, []string{"p0", "p1", "p2", "p3"}, time.Second)
	if res.MaxEpoch != 7 {
		t.Fatalf("want max epoch 7, got %d", res.MaxEpoch)
	}
	if len(res.Failed) != 1 || res.Failed[0] != "p3" {
		t.Fatalf("want failed [p3], got %v", res.Failed)
	}
}

func TestWaitForProxyEpoch(t *testing.T) {
	client := &stubClient{epochs: map[string]int64{"p0": 1, "p1": 1}}
	go func() {
		time.Sleep(20 * time.Millisecond)
		client.bump("p0", 5)
		client.bump("p1", 5)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	timedOut, err := WaitForProxyEpoch(ctx, client, []string{"p0", "p1"}, 5, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if timedOut != "" {
		t.Fatalf("expected no timeout, got %q", timedOut)
	}
}

func TestWaitForProxyEpochTimesOut(t *testing.T) {
	client := &stubClient{epochs: map[string]int64{"p0": 1}}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	timedOut, err := WaitForProxyEpoch(ctx, client, []string{"p0"}, 5, 5*time.Millisecond)
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
	if timedOut != "p0" {
		t.Fatalf("want timedOut p0, got %q", timedOut)
	}
}
