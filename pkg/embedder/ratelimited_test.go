package embedder

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBackend is a scriptable backend for testing the resilience wrappers.
type mockBackend struct {
	mu            sync.Mutex
	calls         int
	batches       [][]string
	failUntilCall int
	errToReturn   error
	dims          int
}

// vectorFor derives a deterministic vector from a text so tests can verify
// positional correspondence.
func vectorFor(text string) []float32 {
	return []float32{float32(len(text))}
}

func (m *mockBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.batches = append(m.batches, slices.Clone(texts))
	m.mu.Unlock()

	if call <= m.failUntilCall {
		return nil, m.errToReturn
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = vectorFor(text)
	}
	return out, nil
}

func (m *mockBackend) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *mockBackend) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 1
}

func (m *mockBackend) Close() error { return nil }

func (m *mockBackend) Profile() ModelProfile {
	return ModelProfile{Model: "mock-model"}
}

func (m *mockBackend) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockBackend) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sizes := make([]int, len(m.batches))
	for i, batch := range m.batches {
		sizes[i] = len(batch)
	}
	return sizes
}

// fastPolicy keeps test sleeps in the millisecond range.
func fastPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:       3,
		InitialDelay:     10 * time.Millisecond,
		MaxDelay:         100 * time.Millisecond,
		BackoffFactor:    2.0,
		RecoveryFactor:   0.5,
		TransientRetries: 2,
		TransientDelay:   5 * time.Millisecond,
	}
}

func newTestClient(backend Client, policy *RetryPolicy) *RateLimitedClient {
	return NewRateLimitedClient(backend, policy)
}

func batchedClient(backend Client, maxBatch int, policy *RetryPolicy) *RateLimitedClient {
	c := NewRateLimitedClient(backend, policy)
	c.profile = ModelProfile{Model: "mock-model", MaxBatchSize: maxBatch}
	return c
}

func TestRateLimitedClient_EmptyInput(t *testing.T) {
	mock := &mockBackend{}
	client := newTestClient(mock, fastPolicy())

	vectors, err := client.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Equal(t, 0, mock.callCount(), "empty input must not contact the backend")
}

func TestRateLimitedClient_BatchSplitting(t *testing.T) {
	mock := &mockBackend{}
	client := batchedClient(mock, 2, fastPolicy())

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := client.Embed(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vectors, len(texts))
	assert.Equal(t, 3, mock.callCount())
	assert.Equal(t, []int{2, 2, 1}, mock.batchSizes())

	for i, text := range texts {
		assert.Equal(t, vectorFor(text), vectors[i], "vector %d must correspond to input %d", i, i)
	}
}

func TestRateLimitedClient_OrderPreservedAcrossRetries(t *testing.T) {
	mock := &mockBackend{
		failUntilCall: 1,
		errToReturn:   errors.New("429 too many requests"),
	}
	client := batchedClient(mock, 2, fastPolicy())

	texts := []string{"x", "yy", "zzz"}
	vectors, err := client.Embed(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, vectorFor(text), vectors[i])
	}
}

func TestRateLimitedClient_ThrottleExhaustion(t *testing.T) {
	mock := &mockBackend{
		failUntilCall: 100,
		errToReturn:   errors.New("ThrottlingException: Rate exceeded"),
	}
	client := newTestClient(mock, fastPolicy())

	_, err := client.Embed(context.Background(), []string{"text"})
	require.Error(t, err)

	var throttleErr *ThrottleError
	require.ErrorAs(t, err, &throttleErr)
	assert.Equal(t, 3, throttleErr.Attempts)
	assert.Equal(t, 3, mock.callCount())
	assert.ErrorIs(t, err, ErrThrottled)
}

func TestRateLimitedClient_ConfigErrorNoRetry(t *testing.T) {
	mock := &mockBackend{
		failUntilCall: 100,
		errToReturn:   errors.New("ValidationException: invalid model identifier"),
	}
	client := newTestClient(mock, fastPolicy())

	_, err := client.Embed(context.Background(), []string{"text"})
	require.Error(t, err)

	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.NotEmpty(t, configErr.Remediation)
	assert.Equal(t, 1, mock.callCount(), "configuration errors must not be retried")
}

func TestRateLimitedClient_AccessDeniedNoRetry(t *testing.T) {
	mock := &mockBackend{
		failUntilCall: 100,
		errToReturn:   errors.New("AccessDeniedException: not authorized to invoke this model"),
	}
	client := newTestClient(mock, fastPolicy())

	_, err := client.Embed(context.Background(), []string{"text"})
	require.Error(t, err)

	var deniedErr *AccessDeniedError
	require.ErrorAs(t, err, &deniedErr)
	assert.Equal(t, 1, mock.callCount())
}

func TestRateLimitedClient_TransientRetrySucceeds(t *testing.T) {
	mock := &mockBackend{
		failUntilCall: 1,
		errToReturn:   errors.New("read tcp: connection reset by peer"),
	}
	client := newTestClient(mock, fastPolicy())

	vectors, err := client.Embed(context.Background(), []string{"text"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, 2, mock.callCount())
}

func TestRateLimitedClient_TransientExhaustion(t *testing.T) {
	mock := &mockBackend{
		failUntilCall: 100,
		errToReturn:   errors.New("dial tcp: i/o timeout"),
	}
	policy := fastPolicy()
	policy.TransientRetries = 1
	client := newTestClient(mock, policy)

	_, err := client.Embed(context.Background(), []string{"text"})
	require.Error(t, err)

	var transientErr *TransientError
	require.ErrorAs(t, err, &transientErr)
	assert.Equal(t, 2, mock.callCount(), "one attempt plus one transient retry")
}

func TestRateLimitedClient_RetrySleepsBeforeRetrying(t *testing.T) {
	mock := &mockBackend{
		failUntilCall: 2,
		errToReturn:   errors.New("429 too many requests"),
	}
	client := newTestClient(mock, fastPolicy())

	start := time.Now()
	_, err := client.Embed(context.Background(), []string{"text"})
	duration := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 3, mock.callCount())
	// First retry waits 10ms, second 20ms, plus the reactive delay applied
	// before the third call.
	assert.GreaterOrEqual(t, duration, 30*time.Millisecond)
}

func TestRateLimitedClient_EmbedSingle(t *testing.T) {
	mock := &mockBackend{}
	client := newTestClient(mock, fastPolicy())

	vector, err := client.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, vectorFor("hello"), vector)
}

func TestRateLimitedClient_CancelledDuringBackoff(t *testing.T) {
	mock := &mockBackend{
		failUntilCall: 100,
		errToReturn:   errors.New("429 too many requests"),
	}
	policy := fastPolicy()
	policy.InitialDelay = 500 * time.Millisecond
	client := newTestClient(mock, policy)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	vectors, err := client.Embed(ctx, []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, vectors, "a cancelled call must not return partial results")
}

func TestBackoffState_ThrottleMonotonic(t *testing.T) {
	policy := &RetryPolicy{
		MaxRetries:     5,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       time.Second,
		BackoffFactor:  2.0,
		RecoveryFactor: 0.8,
	}
	client := newTestClient(&mockBackend{}, policy)

	throttle := errors.New("429")
	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second, // capped
	}
	previous := time.Duration(0)
	for i, want := range expected {
		client.handleThrottle(throttle)
		got := client.currentBackoffDelay()
		assert.Equal(t, want, got, "delay after throttle signal %d", i+1)
		assert.GreaterOrEqual(t, got, previous, "delay must be non-decreasing under throttling")
		previous = got
	}
}

func TestBackoffState_RecoveryReachesZero(t *testing.T) {
	policy := &RetryPolicy{
		MaxRetries:     5,
		InitialDelay:   400 * time.Millisecond,
		MaxDelay:       time.Second,
		BackoffFactor:  2.0,
		RecoveryFactor: 0.5,
	}
	client := newTestClient(&mockBackend{}, policy)
	client.handleThrottle(errors.New("429"))
	require.Equal(t, 400*time.Millisecond, client.currentBackoffDelay())

	// The first success only counts; the delay shrinks from the second on.
	client.handleSuccess()
	assert.Equal(t, 400*time.Millisecond, client.currentBackoffDelay())

	client.handleSuccess()
	assert.Equal(t, 200*time.Millisecond, client.currentBackoffDelay())

	client.handleSuccess()
	assert.Equal(t, 100*time.Millisecond, client.currentBackoffDelay())

	// 50ms falls below the floor: full speed restored.
	client.handleSuccess()
	assert.Equal(t, time.Duration(0), client.currentBackoffDelay())
	assert.Equal(t, 0, client.consecutiveSuccesses)
}

func TestBackoffState_ThrottleResetsSuccessStreak(t *testing.T) {
	client := newTestClient(&mockBackend{}, fastPolicy())
	client.handleThrottle(errors.New("429"))
	client.handleSuccess()
	require.Equal(t, 1, client.consecutiveSuccesses)

	client.handleThrottle(errors.New("429"))
	assert.Equal(t, 0, client.consecutiveSuccesses)
}

func TestRateLimitedClient_ReactiveDelayApplied(t *testing.T) {
	mock := &mockBackend{}
	policy := fastPolicy()
	policy.InitialDelay = 50 * time.Millisecond
	client := newTestClient(mock, policy)

	// Simulate a previously observed throttle.
	client.handleThrottle(errors.New("429"))

	start := time.Now()
	_, err := client.Embed(context.Background(), []string{"text"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond,
		"the reactive delay must be applied before the backend call")
}

func TestRateLimitedClient_NoDelayWhenHealthy(t *testing.T) {
	mock := &mockBackend{}
	client := newTestClient(mock, fastPolicy())

	start := time.Now()
	_, err := client.Embed(context.Background(), []string{"text"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond,
		"a healthy backend is called without preemptive delay")
}

func TestRateLimitedClient_ConcurrentCallers(t *testing.T) {
	mock := &mockBackend{}
	client := batchedClient(mock, 4, fastPolicy())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			texts := []string{"one", "two", "three", "four", "five"}
			vectors, err := client.Embed(context.Background(), texts)
			assert.NoError(t, err)
			assert.Len(t, vectors, len(texts))
			for j, text := range texts {
				assert.Equal(t, vectorFor(text), vectors[j])
			}
		}()
	}
	wg.Wait()
}

func TestRateLimitedClient_EventsFired(t *testing.T) {
	events := &recordingEvents{}
	mock := &mockBackend{
		failUntilCall: 1,
		errToReturn:   errors.New("429 too many requests"),
	}
	client := NewRateLimitedClient(mock, fastPolicy(), WithEvents(events), WithName("test-backend"))

	_, err := client.Embed(context.Background(), []string{"text"})
	require.NoError(t, err)

	assert.Equal(t, 1, events.throttles(), "one throttle event expected")
	assert.GreaterOrEqual(t, events.delayChanges(), 1)
}
