package lowstock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockledger/pkg/enums"
	"github.com/angelmondragon/stockledger/pkg/metrics"
)

type staticActors struct {
	ids  []uuid.UUID
	err  error
	seen []enums.Permission
	mu   sync.Mutex
}

func (s *staticActors) ActorsWithPermission(_ context.Context, p enums.Permission) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, p)
	return s.ids, s.err
}

type sent struct {
	actor    uuid.UUID
	title    string
	metadata map[string]any
}

type recordingDispatcher struct {
	mu      sync.Mutex
	sends   []sent
	failFor uuid.UUID
	panicOn uuid.UUID
	stallOn uuid.UUID
}

func (r *recordingDispatcher) Send(ctx context.Context, actorID uuid.UUID, title, _ string, metadata map[string]any) error {
	if actorID == r.panicOn {
		panic("dispatcher exploded")
	}
	if actorID == r.stallOn {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if actorID == r.failFor {
		return errors.New("inbox unavailable")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, sent{actor: actorID, title: title, metadata: metadata})
	return nil
}

func (r *recordingDispatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sends)
}

type memoryCooldown struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (m *memoryCooldown) LowStockKey(variantID string) string { return "sl:lowstock:" + variantID }

func (m *memoryCooldown) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func runUntilDrained(t *testing.T, w *Worker, m *Monitor) {
	t.Helper()
	m.Close()
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not drain the queue")
	}
}

func TestWorkerFansOutToEveryActor(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	actors := &staticActors{ids: []uuid.UUID{a, b}}
	dispatcher := &recordingDispatcher{}
	m := NewMonitor(MonitorOptions{})
	w, err := NewWorker(WorkerParams{
		Monitor:    m,
		Actors:     actors,
		Dispatcher: dispatcher,
		Workers:    3,
		Metrics:    metrics.NewLowStockMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)

	rec := record(4, 10, true)
	m.MaybeAlert(context.Background(), rec)
	runUntilDrained(t, w, m)

	require.Equal(t, 2, dispatcher.count())
	assert.ElementsMatch(t, []uuid.UUID{a, b}, []uuid.UUID{dispatcher.sends[0].actor, dispatcher.sends[1].actor})
	assert.Equal(t, rec.ProductVariantID.String(), dispatcher.sends[0].metadata["productVariantId"])
	assert.Equal(t, 4, dispatcher.sends[0].metadata["available"])
	assert.Equal(t, []enums.Permission{enums.PermissionInventoryAlerts}, actors.seen)
}

func TestWorkerKeepsGoingAfterActorFailure(t *testing.T) {
	bad, good := uuid.New(), uuid.New()
	dispatcher := &recordingDispatcher{failFor: bad}
	m := NewMonitor(MonitorOptions{})
	w, err := NewWorker(WorkerParams{Monitor: m, Actors: &staticActors{ids: []uuid.UUID{bad, good}}, Dispatcher: dispatcher})
	require.NoError(t, err)

	err = w.handle(context.Background(), alertFromRecord(record(2, 5, true), time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad.String())
	require.Equal(t, 1, dispatcher.count())
	assert.Equal(t, good, dispatcher.sends[0].actor)
}

func TestWorkerRecoversDispatchPanic(t *testing.T) {
	boom, good := uuid.New(), uuid.New()
	dispatcher := &recordingDispatcher{panicOn: boom}
	m := NewMonitor(MonitorOptions{})
	w, err := NewWorker(WorkerParams{Monitor: m, Actors: &staticActors{ids: []uuid.UUID{boom, good}}, Dispatcher: dispatcher})
	require.NoError(t, err)

	var handleErr error
	require.NotPanics(t, func() {
		handleErr = w.handle(context.Background(), alertFromRecord(record(2, 5, true), time.Now()))
	})
	require.Error(t, handleErr)
	assert.Contains(t, handleErr.Error(), "panic")
	assert.Contains(t, handleErr.Error(), boom.String())
	require.Equal(t, 1, dispatcher.count())
	assert.Equal(t, good, dispatcher.sends[0].actor)
}

func TestWorkerSlowActorDoesNotStarveOthers(t *testing.T) {
	slow, good := uuid.New(), uuid.New()
	dispatcher := &recordingDispatcher{stallOn: slow}
	m := NewMonitor(MonitorOptions{})
	w, err := NewWorker(WorkerParams{
		Monitor:         m,
		Actors:          &staticActors{ids: []uuid.UUID{slow, good}},
		Dispatcher:      dispatcher,
		DispatchTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	err = w.handle(context.Background(), alertFromRecord(record(2, 5, true), time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), slow.String())
	assert.NotContains(t, err.Error(), good.String())
	require.Equal(t, 1, dispatcher.count())
	assert.Equal(t, good, dispatcher.sends[0].actor)
}

func TestWorkerCooldownSuppressesRepeats(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	m := NewMonitor(MonitorOptions{})
	w, err := NewWorker(WorkerParams{
		Monitor:     m,
		Actors:      &staticActors{ids: []uuid.UUID{uuid.New()}},
		Dispatcher:  dispatcher,
		Cooldown:    &memoryCooldown{},
		CooldownTTL: time.Minute,
		Workers:     1,
	})
	require.NoError(t, err)

	rec := record(4, 10, true)
	m.MaybeAlert(context.Background(), rec)
	m.MaybeAlert(context.Background(), rec)
	m.MaybeAlert(context.Background(), record(4, 10, true))
	runUntilDrained(t, w, m)

	assert.Equal(t, 2, dispatcher.count())
}

func TestWorkerWithoutCooldownAlertsEveryTime(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	m := NewMonitor(MonitorOptions{})
	w, err := NewWorker(WorkerParams{
		Monitor:    m,
		Actors:     &staticActors{ids: []uuid.UUID{uuid.New()}},
		Dispatcher: dispatcher,
		Cooldown:   &memoryCooldown{},
		Workers:    1,
	})
	require.NoError(t, err)

	rec := record(4, 10, true)
	m.MaybeAlert(context.Background(), rec)
	m.MaybeAlert(context.Background(), rec)
	runUntilDrained(t, w, m)

	assert.Equal(t, 2, dispatcher.count())
}

func TestWorkerCooldownFailsOpen(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	m := NewMonitor(MonitorOptions{})
	w, err := NewWorker(WorkerParams{
		Monitor:     m,
		Actors:      &staticActors{ids: []uuid.UUID{uuid.New()}},
		Dispatcher:  dispatcher,
		Cooldown:    &memoryCooldown{err: errors.New("redis down")},
		CooldownTTL: time.Minute,
	})
	require.NoError(t, err)

	require.NoError(t, w.handle(context.Background(), alertFromRecord(record(1, 3, true), time.Now())))
	assert.Equal(t, 1, dispatcher.count())
}

func TestWorkerResolverError(t *testing.T) {
	m := NewMonitor(MonitorOptions{})
	w, err := NewWorker(WorkerParams{Monitor: m, Actors: &staticActors{err: errors.New("db gone")}, Dispatcher: &recordingDispatcher{}})
	require.NoError(t, err)
	require.Error(t, w.handle(context.Background(), alertFromRecord(record(1, 3, true), time.Now())))
}

func TestWorkerStopsOnCancel(t *testing.T) {
	m := NewMonitor(MonitorOptions{})
	w, err := NewWorker(WorkerParams{Monitor: m, Actors: &staticActors{}, Dispatcher: &recordingDispatcher{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker ignored cancellation")
	}
}

func TestNewWorkerRequiresCollaborators(t *testing.T) {
	_, err := NewWorker(WorkerParams{})
	require.Error(t, err)
	_, err = NewWorker(WorkerParams{Monitor: NewMonitor(MonitorOptions{})})
	require.Error(t, err)
	_, err = NewWorker(WorkerParams{Monitor: NewMonitor(MonitorOptions{}), Actors: &staticActors{}})
	require.Error(t, err)
}
