package jobpool_test

import (
	"context"
	"testing"
	"time"

	"github.com/eak1mov/go-globetiles/internal/jobpool"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// drainUntil collects results until n arrived or the deadline passes.
func drainUntil[K comparable, R any](t *testing.T, p *jobpool.Pool[K, R], n int) []jobpool.Result[K, R] {
	t.Helper()
	var got []jobpool.Result[K, R]
	deadline := time.Now().Add(5 * time.Second)
	for len(got) < n {
		if time.Now().After(deadline) {
			t.Fatalf("got %d results before the deadline, want %d", len(got), n)
		}
		got = append(got, p.Drain()...)
		time.Sleep(time.Millisecond)
	}
	return got
}

func TestSubmitCoalescesPendingKey(t *testing.T) {
	p := jobpool.New[string, int](jobpool.WithWorkers(1))
	defer p.Close()

	gate := make(chan struct{})
	fn := func(context.Context) int {
		<-gate
		return 42
	}

	require.True(t, p.Submit("a", fn))
	require.False(t, p.Submit("a", fn))
	require.True(t, p.Pending("a"))

	close(gate)
	got := drainUntil(t, p, 1)
	if diff := cmp.Diff([]jobpool.Result[string, int]{{Key: "a", Value: 42}}, got); diff != "" {
		t.Errorf("Drain mismatch (-want +got):\n%v", diff)
	}

	if got, want := p.Stats(), (jobpool.Stats{Submitted: 1, Coalesced: 1, Completed: 1}); got != want {
		t.Errorf("Stats() = %+v, want = %+v", got, want)
	}
	require.False(t, p.Pending("a"))

	// Once completed, the same key may be submitted again.
	require.True(t, p.Submit("a", func(context.Context) int { return 1 }))
	drainUntil(t, p, 1)
}

func TestResultsArriveInCompletionOrder(t *testing.T) {
	p := jobpool.New[int, int](jobpool.WithWorkers(2))
	defer p.Close()

	slow := make(chan struct{})
	p.Submit(1, func(context.Context) int {
		<-slow
		return 1
	})
	p.Submit(2, func(context.Context) int { return 2 })

	first := drainUntil(t, p, 1)
	close(slow)
	second := drainUntil(t, p, 1)

	if got, want := []int{first[0].Key, second[0].Key}, []int{2, 1}; !cmp.Equal(got, want) {
		t.Errorf("completion order = %v, want = %v", got, want)
	}
}

func TestDiscardDropsQueuedJobs(t *testing.T) {
	p := jobpool.New[int, int](jobpool.WithWorkers(1))
	defer p.Close()

	gate := make(chan struct{})
	block := func(v int) func(context.Context) int {
		return func(context.Context) int {
			<-gate
			return v
		}
	}
	p.Submit(1, block(1))
	p.Submit(2, block(2))
	p.Submit(3, block(3))

	if got := p.Discard(func(k int) bool { return k == 3 }); got != 1 {
		t.Fatalf("Discard() = %d, want = 1", got)
	}
	require.False(t, p.Pending(3))

	close(gate)
	got := drainUntil(t, p, 2)
	keys := []int{got[0].Key, got[1].Key}
	if !cmp.Equal(keys, []int{1, 2}) && !cmp.Equal(keys, []int{2, 1}) {
		t.Errorf("completed keys = %v, want 1 and 2", keys)
	}
	time.Sleep(10 * time.Millisecond)
	require.Empty(t, p.Drain())
}

func TestCloseCancelsRunningJobs(t *testing.T) {
	p := jobpool.New[int, error](jobpool.WithWorkers(1), jobpool.WithRate(1000, 10))

	started := make(chan struct{})
	p.Submit(1, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	require.NoError(t, p.Close())

	got := p.Drain()
	require.Len(t, got, 1)
	require.ErrorIs(t, got[0].Value, context.Canceled)
}

func TestCompletedKeyStaysPendingUntilDrained(t *testing.T) {
	p := jobpool.New[string, int](jobpool.WithWorkers(1))
	defer p.Close()

	require.True(t, p.Submit("a", func(context.Context) int { return 1 }))
	require.Eventually(t, func() bool { return p.Stats().Completed == 1 }, 5*time.Second, time.Millisecond)

	require.False(t, p.Submit("a", func(context.Context) int { return 2 }))
	require.Len(t, p.Drain(), 1)
	require.True(t, p.Submit("a", func(context.Context) int { return 3 }))
}
