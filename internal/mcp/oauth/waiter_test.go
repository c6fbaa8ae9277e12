package oauth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type flagChecker struct {
	authenticated atomic.Bool
	calls         atomic.Int32
}

func (c *flagChecker) IsAuthenticated(context.Context, string) bool {
	c.calls.Add(1)
	return c.authenticated.Load()
}

func TestLoginWaiter_AlreadyAuthenticated(t *testing.T) {
	checker := &flagChecker{}
	checker.authenticated.Store(true)
	w := NewLoginWaiter(checker, time.Second, 10*time.Millisecond)

	assert.True(t, w.Wait(context.Background(), "a@x.com", nil))
	assert.Equal(t, int32(1), checker.calls.Load())
}

func TestLoginWaiter_CompletesWhileWaiting(t *testing.T) {
	checker := &flagChecker{}
	w := NewLoginWaiter(checker, 5*time.Second, 5*time.Millisecond)

	time.AfterFunc(30*time.Millisecond, func() { checker.authenticated.Store(true) })

	start := time.Now()
	assert.True(t, w.Wait(context.Background(), "a@x.com", nil))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLoginWaiter_Timeout(t *testing.T) {
	checker := &flagChecker{}
	w := NewLoginWaiter(checker, 40*time.Millisecond, 10*time.Millisecond)

	assert.False(t, w.Wait(context.Background(), "a@x.com", nil))
}

func TestLoginWaiter_ContextCancelled(t *testing.T) {
	checker := &flagChecker{}
	w := NewLoginWaiter(checker, time.Minute, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.False(t, w.Wait(ctx, "a@x.com", nil))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestLoginWaiter_ConcurrentCallersShareResult(t *testing.T) {
	checker := &flagChecker{}
	w := NewLoginWaiter(checker, 5*time.Second, 5*time.Millisecond)

	const callers = 8
	results := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = w.Wait(context.Background(), "a@x.com", nil)
		}(i)
	}

	time.AfterFunc(30*time.Millisecond, func() { checker.authenticated.Store(true) })
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, "caller %d", i)
	}
}

func TestNewLoginWaiter_Defaults(t *testing.T) {
	w := NewLoginWaiter(&flagChecker{}, 0, 0)
	assert.Equal(t, DefaultLoginWaitTimeout, w.timeout)
	assert.Equal(t, DefaultLoginPollInterval, w.interval)
}

func TestLoginWaiter_StartRunsOncePerSharedWait(t *testing.T) {
	checker := &flagChecker{}
	w := NewLoginWaiter(checker, 5*time.Second, 5*time.Millisecond)

	var starts atomic.Int32
	release := make(chan struct{})
	start := func() {
		starts.Add(1)
		<-release
	}

	const callers = 5
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, w.Wait(context.Background(), "a@x.com", start))
		}()
	}

	// Let every caller join the wait before the login completes.
	time.Sleep(50 * time.Millisecond)
	checker.authenticated.Store(true)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), starts.Load())
}

func TestLoginWaiter_StartSkippedWhenAuthenticated(t *testing.T) {
	checker := &flagChecker{}
	checker.authenticated.Store(true)
	w := NewLoginWaiter(checker, time.Second, 10*time.Millisecond)

	started := false
	assert.True(t, w.Wait(context.Background(), "a@x.com", func() { started = true }))
	assert.False(t, started)
}
