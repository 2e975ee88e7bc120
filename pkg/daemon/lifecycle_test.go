package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoreinstein.com/repodash/pkg/discovery"
)

type fakeScanner struct {
	calls atomic.Int32
	busy  atomic.Bool
}

func (f *fakeScanner) StartScan(context.Context, ...string) (<-chan discovery.ScanResult, error) {
	if f.busy.Load() {
		return nil, discovery.ErrScanInProgress
	}
	f.calls.Add(1)
	ch := make(chan discovery.ScanResult, 1)
	ch <- discovery.ScanResult{Summaries: []discovery.Summary{{Found: 2}}}
	close(ch)
	return ch, nil
}

func TestLifecycle_InitialScanOnly(t *testing.T) {
	s := &fakeScanner{}
	var results []discovery.ScanResult
	var mu sync.Mutex
	l := NewLifecycle(s, 0, func(res discovery.ScanResult) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(context.Background())
	}()

	require.Eventually(t, func() bool { return s.calls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	l.Stop()
	l.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Summaries[0].Found)
}

func TestLifecycle_PeriodicRescans(t *testing.T) {
	s := &fakeScanner{}
	l := NewLifecycle(s, 10*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx)
	}()

	require.Eventually(t, func() bool { return s.calls.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestLifecycle_SkipsWhileScanning(t *testing.T) {
	s := &fakeScanner{}
	s.busy.Store(true)
	called := false
	l := NewLifecycle(s, 0, func(discovery.ScanResult) { called = true }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Run(ctx)

	assert.Equal(t, int32(0), s.calls.Load())
	assert.False(t, called)
}
