package pairing

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wavecastsh/wavecast/internal/device"
	"github.com/wavecastsh/wavecast/internal/store"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.db")
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	registry := device.New(st, nil)
	return New(registry, func() string { return "room-abc" }, "http://localhost:8787")
}

func TestCurrentCodeIsValid(t *testing.T) {
	c := newTestCoordinator(t)
	info := c.CurrentCode()
	if info.Code == "" {
		t.Fatalf("expected non-empty code")
	}
	if !c.IsValid(info.Code) {
		t.Fatalf("expected fresh code to be valid")
	}
}

func TestConsumeSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)
	info := c.CurrentCode()

	res, err := c.Consume(ctx, info.Code, "wavecast-mobile/1.0")
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if !res.Success || res.DeviceToken == "" {
		t.Fatalf("expected first consume to succeed, got %+v", res)
	}

	res2, err := c.Consume(ctx, info.Code, "wavecast-mobile/1.0")
	if err != nil {
		t.Fatalf("Consume second: %v", err)
	}
	if res2.Success {
		t.Fatalf("expected second consume of same code to fail")
	}
}

func TestConsumeConcurrentSeesExactlyOneSuccess(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)
	info := c.CurrentCode()

	const n = 10
	results := make([]ConsumeResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, _ := c.Consume(ctx, info.Code, "ua")
			results[i] = res
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, r := range results {
		if r.Success {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 success among %d concurrent consumes, got %d", n, successes)
	}
}

func TestConsumeWithApprovalFlow(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)
	c.SetRequireApproval(true)
	info := c.CurrentCode()

	resultCh := make(chan ConsumeResult, 1)
	go func() {
		res, _ := c.Consume(ctx, info.Code, "ua")
		resultCh <- res
	}()

	var reqID string
	for reqID == "" {
		pending := c.PendingRequests()
		if len(pending) > 0 {
			reqID = pending[0].RequestID
		}
	}

	if err := c.Approve(ctx, reqID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	res := <-resultCh
	if !res.Success {
		t.Fatalf("expected approval to produce a successful consume, got %+v", res)
	}
}

func TestConsumeWithDenial(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)
	c.SetRequireApproval(true)
	info := c.CurrentCode()

	resultCh := make(chan ConsumeResult, 1)
	go func() {
		res, _ := c.Consume(ctx, info.Code, "ua")
		resultCh <- res
	}()

	var reqID string
	for reqID == "" {
		pending := c.PendingRequests()
		if len(pending) > 0 {
			reqID = pending[0].RequestID
		}
	}

	if err := c.Deny(reqID); err != nil {
		t.Fatalf("Deny: %v", err)
	}

	res := <-resultCh
	if res.Success {
		t.Fatalf("expected denied consume to report failure")
	}
}
