package conn

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"qcgallery/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeHandle struct {
	id int64
}

type countingAcquirer struct {
	calls    atomic.Int64
	released atomic.Int64
	err      error
	gate     chan struct{}
}

func (a *countingAcquirer) acquire(ctx context.Context) (*fakeHandle, error) {
	n := a.calls.Add(1)
	if a.gate != nil {
		<-a.gate
	}
	if a.err != nil {
		return nil, a.err
	}
	return &fakeHandle{id: n}, nil
}

func (a *countingAcquirer) release(*fakeHandle) error {
	a.released.Add(1)
	return nil
}

func newTestConnection(a *countingAcquirer, clock Clock) *Connection[*fakeHandle] {
	return New(a.acquire, a.release, Options{Name: "test", Clock: clock})
}

func TestEnsureValidAcquiresLazilyOnce(t *testing.T) {
	clock := NewManualClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	acq := &countingAcquirer{}
	c := newTestConnection(acq, clock)

	assert.Nil(t, c.Snapshot())
	assert.Equal(t, int64(0), acq.calls.Load())

	h1, err := c.EnsureValid(context.Background())
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	h2, err := c.EnsureValid(context.Background())
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, int64(1), acq.calls.Load())
	assert.Equal(t, clock.Now().Add(-30*time.Minute), c.Snapshot().IssuedAt)
}

func TestEnsureValidReissuesAfterLifetime(t *testing.T) {
	clock := NewManualClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	acq := &countingAcquirer{}
	c := newTestConnection(acq, clock)

	first, err := c.EnsureValid(context.Background())
	require.NoError(t, err)
	firstGen := c.Snapshot().Generation

	// Exactly at the window edge the handle is still usable.
	clock.Advance(DefaultLifetime)
	same, err := c.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, same)

	clock.Set(c.Snapshot().IssuedAt.Add(60 * time.Minute))
	second, err := c.EnsureValid(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, int64(2), acq.calls.Load(), "exactly one re-issuance")
	assert.Zero(t, acq.released.Load(), "stale handle retired, not released")
	assert.Equal(t, 1, c.Retired())
	assert.NotEqual(t, firstGen, c.Snapshot().Generation)
}

func TestRetiredHandleReleasedAfterGrace(t *testing.T) {
	clock := NewManualClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	acq := &countingAcquirer{}
	c := New(acq.acquire, acq.release, Options{Name: "test", Clock: clock, Grace: 10 * time.Minute})
	ctx := context.Background()

	held, err := c.EnsureValid(ctx)
	require.NoError(t, err)
	clock.Advance(60 * time.Minute)
	_, err = c.EnsureValid(ctx)
	require.NoError(t, err)
	assert.Zero(t, acq.released.Load())
	assert.NotNil(t, held)

	// The next refresh is well past the grace period of the first handle.
	clock.Advance(60 * time.Minute)
	_, err = c.EnsureValid(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), acq.released.Load())
	assert.Equal(t, 1, c.Retired())

	require.NoError(t, c.Close())
	assert.Equal(t, int64(3), acq.released.Load(), "close releases current and retired handles")
	assert.Zero(t, c.Retired())
}

func TestConcurrentCallersCoalesceRefresh(t *testing.T) {
	clock := NewManualClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	acq := &countingAcquirer{}
	c := newTestConnection(acq, clock)

	_, err := c.EnsureValid(context.Background())
	require.NoError(t, err)
	clock.Advance(60 * time.Minute)

	acq.gate = make(chan struct{})
	const callers = 32
	var wg sync.WaitGroup
	handles := make([]*fakeHandle, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = c.EnsureValid(context.Background())
		}(i)
	}

	// Let the single in-flight acquisition finish.
	require.Eventually(t, func() bool { return acq.calls.Load() == 2 }, time.Second, time.Millisecond)
	close(acq.gate)
	wg.Wait()

	assert.Equal(t, int64(2), acq.calls.Load(), "one initial acquisition plus one refresh")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, handles[0], handles[i])
	}
}

func TestAcquireFailureIsClassifiedAndRetriedNextCall(t *testing.T) {
	clock := NewManualClock(time.Now())
	acq := &countingAcquirer{err: stderrors.New("dial tcp: connection refused")}
	c := newTestConnection(acq, clock)

	_, err := c.EnsureValid(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsUnreachable(err))
	assert.Nil(t, c.Snapshot())

	acq.err = errors.AuthFailure("test", stderrors.New("invalid_client"))
	_, err = c.EnsureValid(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsAuthFailure(err))

	acq.err = nil
	h, err := c.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, int64(3), acq.calls.Load())
}

func TestCloseReleasesHandle(t *testing.T) {
	acq := &countingAcquirer{}
	c := newTestConnection(acq, NewManualClock(time.Now()))

	_, err := c.EnsureValid(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Equal(t, int64(1), acq.released.Load())
	assert.Nil(t, c.Snapshot())
}

type recordingObserver struct {
	mu     sync.Mutex
	issued int
	failed []string
}

func (o *recordingObserver) ConnectionIssued(string) {
	o.mu.Lock()
	o.issued++
	o.mu.Unlock()
}

func (o *recordingObserver) ConnectionFailed(_ string, code string) {
	o.mu.Lock()
	o.failed = append(o.failed, code)
	o.mu.Unlock()
}

func TestObserverSeesRefreshes(t *testing.T) {
	obs := &recordingObserver{}
	acq := &countingAcquirer{}
	clock := NewManualClock(time.Now())
	c := New(acq.acquire, acq.release, Options{Name: "observed", Clock: clock, Observer: obs})

	_, _ = c.EnsureValid(context.Background())
	clock.Advance(time.Hour)
	_, _ = c.EnsureValid(context.Background())
	acq.err = stderrors.New("boom")
	clock.Advance(time.Hour)
	_, _ = c.EnsureValid(context.Background())

	assert.Equal(t, 2, obs.issued)
	assert.Equal(t, []string{errors.CodeUnreachable}, obs.failed)
}
