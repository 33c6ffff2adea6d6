package limiter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amaumene/ytarr/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameKeyNeverOverlaps(t *testing.T) {
	l := New(0, nil, utils.NewNopLogger())

	var running, maxRunning int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), "yt-dlp:a", func(ctx context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					m := atomic.LoadInt32(&maxRunning)
					if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxRunning)
	assert.Equal(t, 0, l.Pending("yt-dlp:a"))
}

func TestSameKeyRunsInSubmissionOrder(t *testing.T) {
	l := New(0, nil, utils.NewNopLogger())

	release := make(chan struct{})
	holding := make(chan struct{})
	go func() {
		_ = l.Do(context.Background(), "k", func(ctx context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = l.Do(context.Background(), "k", func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
		// Wait until the call is queued before submitting the next one
		require.Eventually(t, func() bool { return l.Pending("k") == i+2 }, time.Second, time.Millisecond)
	}

	close(release)
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestDifferentKeysOverlap(t *testing.T) {
	l := New(0, nil, utils.NewNopLogger())

	bothIn := make(chan struct{})
	var entered int32
	run := func(key string) error {
		return l.Do(context.Background(), key, func(ctx context.Context) error {
			if atomic.AddInt32(&entered, 1) == 2 {
				close(bothIn)
			}
			select {
			case <-bothIn:
				return nil
			case <-time.After(time.Second):
				return errors.New("keys did not overlap")
			}
		})
	}

	errs := make(chan error, 2)
	go func() { errs <- run("a") }()
	go func() { errs <- run("b") }()

	assert.NoError(t, <-errs)
	assert.NoError(t, <-errs)
}

func TestFailureReleasesSlot(t *testing.T) {
	l := New(0, nil, utils.NewNopLogger())
	boom := errors.New("boom")

	err := l.Do(context.Background(), "k", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	got, err := Run(context.Background(), l, "k", func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestCancelledWaiterLeavesQueue(t *testing.T) {
	l := New(0, nil, utils.NewNopLogger())

	release := make(chan struct{})
	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Do(context.Background(), "k", func(ctx context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, "k", func(ctx context.Context) error {
		t.Error("cancelled call must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.Pending("k"))

	close(release)
	<-done
	assert.Equal(t, 0, l.Pending("k"))
}

func TestPacingSpacesCalls(t *testing.T) {
	l := New(30*time.Millisecond, nil, utils.NewNopLogger())

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Do(context.Background(), "k", func(ctx context.Context) error { return nil }))
	}
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestIdlePacersAreEvicted(t *testing.T) {
	l := New(20*time.Millisecond, nil, utils.NewNopLogger())

	for _, key := range []string{"yt-dlp:a", "yt-dlp:b", "yt-dlp:c"} {
		require.NoError(t, l.Do(context.Background(), key, func(ctx context.Context) error { return nil }))
	}
	assert.Equal(t, 3, l.pacers.ItemCount())

	time.Sleep(50 * time.Millisecond)
	l.pacers.DeleteExpired()
	assert.Equal(t, 0, l.pacers.ItemCount())
	assert.Equal(t, 0, l.Pending("yt-dlp:a"))
}

func TestNoPacersWithoutInterval(t *testing.T) {
	l := New(0, nil, utils.NewNopLogger())
	require.NoError(t, l.Do(context.Background(), "k", func(ctx context.Context) error { return nil }))
	assert.Nil(t, l.pacers)
}
