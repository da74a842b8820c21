package requestcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestKeyIgnoresFieldOrder(t *testing.T) {
	type payload struct {
		Zeta  []string `json:"zeta"`
		Alpha string   `json:"alpha"`
	}

	fromStruct, err := Key("analyze", payload{Zeta: []string{"rice"}, Alpha: "x"})
	require.NoError(t, err)
	fromMap, err := Key("analyze", map[string]any{"alpha": "x", "zeta": []string{"rice"}})
	require.NoError(t, err)

	assert.Equal(t, fromStruct, fromMap)
	assert.Equal(t, `analyze:{"alpha":"x","zeta":["rice"]}`, fromMap)

	other, err := Key("generate", map[string]any{"alpha": "x", "zeta": []string{"rice"}})
	require.NoError(t, err)
	assert.NotEqual(t, fromMap, other)
}

func TestDoSharesInFlightCall(t *testing.T) {
	c := New()
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Do(context.Background(), "k", func(context.Context) (any, error) {
				calls.Add(1)
				<-release
				return "done", nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "done", v)
	}
}

func TestDoReplaysResultUntilTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(WithClock(clock.Now))
	calls := 0
	fn := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	v, err := c.Do(context.Background(), "k", fn)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(1500 * time.Millisecond)
	v, err = c.Do(context.Background(), "k", fn)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "result within TTL should be replayed")

	clock.Advance(600 * time.Millisecond)
	v, err = c.Do(context.Background(), "k", fn)
	require.NoError(t, err)
	assert.Equal(t, 2, v, "result past TTL should be refreshed")
	assert.Equal(t, 2, calls)
}

func TestDoReplaysErrorForMinInterval(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(WithClock(clock.Now))
	boom := errors.New("provider down")
	calls := 0
	fn := func(context.Context) (any, error) {
		calls++
		return nil, boom
	}

	_, err := c.Do(context.Background(), "k", fn)
	assert.ErrorIs(t, err, boom)

	clock.Advance(500 * time.Millisecond)
	_, err = c.Do(context.Background(), "k", fn)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	clock.Advance(600 * time.Millisecond)
	_, _ = c.Do(context.Background(), "k", fn)
	assert.Equal(t, 2, calls)
}

func TestDoWaiterHonoursContext(t *testing.T) {
	c := New()
	release := make(chan struct{})
	defer close(release)

	started := make(chan struct{})
	go func() {
		_, _ = c.Do(context.Background(), "k", func(context.Context) (any, error) {
			close(started)
			<-release
			return "late", nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Do(ctx, "k", func(context.Context) (any, error) {
		t.Fatal("second caller must join the in-flight call")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchTyped(t *testing.T) {
	c := New()
	v, err := Fetch(context.Background(), c, "k", func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = Fetch(context.Background(), c, "k", func(context.Context) (string, error) {
		return "unused", nil
	})
	assert.Error(t, err, "cached int must not be returned as string")

	c.Invalidate("k")
	assert.Equal(t, 0, c.Len())
}
