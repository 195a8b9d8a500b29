// ABOUTME: Tests for the admission controller request lifecycle.
// ABOUTME: Covers quota denial, busy denial, dispatch failures, and guaranteed gate release.

package admission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliomancer/aplmint/internal/dispatch"
	"github.com/heliomancer/aplmint/internal/gate"
	"github.com/heliomancer/aplmint/internal/models"
	"github.com/heliomancer/aplmint/internal/quota"
	"github.com/heliomancer/aplmint/internal/store"
)

// fakeTransport records replies and typing indicators.
type fakeTransport struct {
	mu       sync.Mutex
	replies  map[int64][]string
	typing   int
	replyErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{replies: make(map[int64][]string)}
}

func (f *fakeTransport) SendReply(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[chatID] = append(f.replies[chatID], text)
	return f.replyErr
}

func (f *fakeTransport) SendTyping(ctx context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return nil
}

func (f *fakeTransport) sent(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.replies[chatID]...)
}

// fakeDispatcher runs a configurable completion function.
type fakeDispatcher struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, prompt, modelID string) (string, error)
}

func (f *fakeDispatcher) Complete(ctx context.Context, prompt, modelID string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(ctx, prompt, modelID)
}

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// failingLog rejects every append, simulating a store outage after dispatch.
type failingLog struct{}

func (failingLog) AppendQueryLog(ctx context.Context, entry *store.QueryLogEntry) error {
	return store.ErrUnavailable
}

type fixture struct {
	controller *Controller
	gate       *gate.Gate
	store      *store.MockStore
	transport  *fakeTransport
	dispatcher *fakeDispatcher
	registry   *models.Registry
	now        time.Time
}

func newFixture(t *testing.T, limit int, fn func(ctx context.Context, prompt, modelID string) (string, error)) *fixture {
	t.Helper()

	registry, err := models.NewRegistry([]models.Model{
		{Name: "DeepSeek", ID: "deepseek/deepseek-chat:free"},
		{Name: "Gemini", ID: "google/gemini-2.0-flash-exp:free"},
	})
	require.NoError(t, err)

	f := &fixture{
		gate:       gate.New(),
		store:      store.NewMockStore(),
		transport:  newFakeTransport(),
		dispatcher: &fakeDispatcher{fn: fn},
		registry:   registry,
		now:        time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.controller = New(
		f.gate,
		quota.New(f.store, limit, quota.WithClock(clock)),
		models.NewPrefs(f.store, registry, nil),
		f.dispatcher,
		f.transport,
		f.store,
		nil,
		WithClock(clock),
	)
	return f
}

func echo(ctx context.Context, prompt, modelID string) (string, error) {
	return "hello back", nil
}

func request(userID int64) *Request {
	return &Request{UserID: userID, Username: "tester", ChatID: 100, Prompt: "hello"}
}

func TestHandle_FreshUserCompletes(t *testing.T) {
	f := newFixture(t, 10, echo)
	ctx := context.Background()

	outcome := f.controller.Handle(ctx, request(1))

	assert.Equal(t, OutcomeCompleted, outcome.Status)
	assert.Equal(t, "hello back", outcome.Reply)
	assert.NoError(t, outcome.Err)

	// The reply went out and a typing indicator preceded it.
	assert.Equal(t, []string{"hello back"}, f.transport.sent(100))
	assert.Equal(t, 1, f.transport.typing)

	// One log row, stamped today with the default model.
	entries, err := f.store.RecentQueries(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "deepseek/deepseek-chat:free", entries[0].Model)
	assert.Equal(t, "tester", entries[0].Username)
	assert.Equal(t, int64(100), entries[0].ChatID)
	assert.True(t, entries[0].CreatedAt.Equal(f.now))

	// The gate is empty again.
	assert.Equal(t, 0, f.gate.InFlight())
}

func TestHandle_QuotaDenied(t *testing.T) {
	f := newFixture(t, 2, echo)
	ctx := context.Background()

	// Two prior completions today put the user at the limit.
	for i := 0; i < 2; i++ {
		require.NoError(t, f.store.AppendQueryLog(ctx, &store.QueryLogEntry{
			ID:        uuid.New().String(),
			UserID:    1,
			ChatID:    100,
			Model:     "m",
			CreatedAt: f.now.Add(-time.Duration(i+1) * time.Minute),
		}))
	}

	outcome := f.controller.Handle(ctx, request(1))

	assert.Equal(t, OutcomeDeniedQuota, outcome.Status)
	assert.Equal(t, "You have reached your daily limit of 2 queries. Please try again tomorrow.", outcome.Reply)

	// No gate interaction, no dispatch, no new log row.
	assert.Equal(t, 0, f.gate.InFlight())
	assert.Equal(t, 0, f.dispatcher.callCount())
	count, err := f.store.CountQueriesBetween(ctx, 1, f.now.Add(-24*time.Hour), f.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHandle_QuotaAllowsAfterMidnight(t *testing.T) {
	f := newFixture(t, 1, echo)
	ctx := context.Background()

	require.Equal(t, OutcomeCompleted, f.controller.Handle(ctx, request(1)).Status)
	require.Equal(t, OutcomeDeniedQuota, f.controller.Handle(ctx, request(1)).Status)

	// Roll the injected clock past midnight.
	f.now = f.now.Add(10 * time.Hour)

	assert.Equal(t, OutcomeCompleted, f.controller.Handle(ctx, request(1)).Status)
}

func TestHandle_BusyDenied(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f := newFixture(t, 10, func(ctx context.Context, prompt, modelID string) (string, error) {
		close(entered)
		<-release
		return "slow answer", nil
	})
	ctx := context.Background()

	var first Outcome
	done := make(chan struct{})
	go func() {
		first = f.controller.Handle(ctx, request(1))
		close(done)
	}()

	// Wait until the first request is inside the dispatcher, then send a
	// second message from the same user.
	<-entered
	second := f.controller.Handle(ctx, request(1))
	assert.Equal(t, OutcomeDeniedBusy, second.Status)
	assert.Equal(t, msgBusy, second.Reply)

	close(release)
	<-done

	// The first request still completed normally and logged exactly once.
	assert.Equal(t, OutcomeCompleted, first.Status)
	entries, err := f.store.RecentQueries(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 0, f.gate.InFlight())
}

func TestHandle_BusyDenialDoesNotBlockOtherUsers(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f := newFixture(t, 10, func(ctx context.Context, prompt, modelID string) (string, error) {
		once.Do(func() { close(entered) })
		if prompt == "slow" {
			<-release
		}
		return "ok", nil
	})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		f.controller.Handle(ctx, &Request{UserID: 1, ChatID: 1, Prompt: "slow"})
		close(done)
	}()
	<-entered

	// A different user is admitted while user 1 is in flight.
	outcome := f.controller.Handle(ctx, &Request{UserID: 2, ChatID: 2, Prompt: "fast"})
	assert.Equal(t, OutcomeCompleted, outcome.Status)

	close(release)
	<-done
}

func TestHandle_NetworkFailure(t *testing.T) {
	f := newFixture(t, 10, func(ctx context.Context, prompt, modelID string) (string, error) {
		return "", dispatch.ErrNetworkUnreachable
	})
	ctx := context.Background()

	outcome := f.controller.Handle(ctx, request(1))

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, msgNetworkError, outcome.Reply)
	assert.ErrorIs(t, outcome.Err, dispatch.ErrNetworkUnreachable)

	// No log row: quota only counts successful completions.
	entries, err := f.store.RecentQueries(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, f.gate.InFlight())
}

func TestHandle_ProviderRejected(t *testing.T) {
	f := newFixture(t, 10, func(ctx context.Context, prompt, modelID string) (string, error) {
		return "", dispatch.ErrProviderRejected
	})

	outcome := f.controller.Handle(context.Background(), request(1))

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, msgProviderError, outcome.Reply)
	assert.Equal(t, 0, f.gate.InFlight())
}

func TestHandle_UnexpectedDispatchError(t *testing.T) {
	f := newFixture(t, 10, func(ctx context.Context, prompt, modelID string) (string, error) {
		return "", errors.New("response contains no choices")
	})

	outcome := f.controller.Handle(context.Background(), request(1))

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, msgInternalError, outcome.Reply)
	assert.Equal(t, 0, f.gate.InFlight())
}

func TestHandle_SelectedModelIsUsed(t *testing.T) {
	var gotModel string
	f := newFixture(t, 10, func(ctx context.Context, prompt, modelID string) (string, error) {
		gotModel = modelID
		return "ok", nil
	})
	ctx := context.Background()

	prefs := models.NewPrefs(f.store, f.registry, nil)
	require.NoError(t, prefs.Select(ctx, 1, "google/gemini-2.0-flash-exp:free"))

	outcome := f.controller.Handle(ctx, request(1))
	require.Equal(t, OutcomeCompleted, outcome.Status)

	assert.Equal(t, "google/gemini-2.0-flash-exp:free", gotModel)

	entries, err := f.store.RecentQueries(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "google/gemini-2.0-flash-exp:free", entries[0].Model)
}

func TestHandle_StoreOutageAborts(t *testing.T) {
	f := newFixture(t, 10, echo)
	f.store.SetFailing(true)

	outcome := f.controller.Handle(context.Background(), request(1))

	// An unreachable store must not be treated as "count is zero".
	assert.Equal(t, OutcomeAborted, outcome.Status)
	assert.Equal(t, msgInternalError, outcome.Reply)
	assert.ErrorIs(t, outcome.Err, store.ErrUnavailable)
	assert.Equal(t, 0, f.dispatcher.callCount())
	assert.Equal(t, 0, f.gate.InFlight())
}

func TestHandle_LogAppendFailure(t *testing.T) {
	f := newFixture(t, 10, echo)
	// Swap in a log that fails after a successful dispatch.
	f.controller.logs = failingLog{}

	outcome := f.controller.Handle(context.Background(), request(1))

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, msgInternalError, outcome.Reply)
	assert.Equal(t, 0, f.gate.InFlight())
}

func TestHandle_PanicReleasesGate(t *testing.T) {
	f := newFixture(t, 10, func(ctx context.Context, prompt, modelID string) (string, error) {
		panic("dispatcher exploded")
	})

	outcome := f.controller.Handle(context.Background(), request(1))

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, msgInternalError, outcome.Reply)
	require.Error(t, outcome.Err)

	// The user is immediately eligible again.
	assert.Equal(t, 0, f.gate.InFlight())
	assert.True(t, f.gate.TryAcquire(1))
}

func TestHandle_ReplyFailureStillReleases(t *testing.T) {
	f := newFixture(t, 10, echo)
	f.transport.replyErr = errors.New("chat gone")

	outcome := f.controller.Handle(context.Background(), request(1))

	// Delivery failure doesn't change the outcome or leak the slot.
	assert.Equal(t, OutcomeCompleted, outcome.Status)
	assert.Equal(t, 0, f.gate.InFlight())
}
