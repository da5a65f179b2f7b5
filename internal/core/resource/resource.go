// Package resource implements stale-while-revalidate reads over the TTL
// cache: cached data is returned at once while a network refresh runs in the
// background and replaces it on success.
package resource

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/partners/internal/infra/cache"
)

// Fetcher loads a fresh value from the network. bypass is true for manual
// retries and reloads after a mutation, so upstream caches are skipped too.
type Fetcher[T any] func(ctx context.Context, bypass bool) (T, error)

// Snapshot is the observable state of a resource.
type Snapshot[T any] struct {
	State     State
	Data      T
	HasData   bool
	UpdatedAt time.Time

	// Err is the last refresh failure. It stays set after DismissError so
	// callers can still inspect it.
	Err          error
	ErrDismissed bool
}

// ShowError reports whether an error banner should be visible.
func (s Snapshot[T]) ShowError() bool {
	return s.Err != nil && !s.ErrDismissed
}

// Options configures a Resource.
type Options[T any] struct {
	Logger *slog.Logger

	// OnChange is called after every state change, outside the lock.
	OnChange func(Transition, Snapshot[T])

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Resource is one logical cached value, such as one sheet tab.
type Resource[T any] struct {
	key      string
	cache    *cache.Cache
	fetch    Fetcher[T]
	log      *slog.Logger
	onChange func(Transition, Snapshot[T])
	now      func() time.Time

	mu     sync.Mutex
	snap   Snapshot[T]
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// New creates a resource stored under key in c.
func New[T any](key string, c *cache.Cache, fetch Fetcher[T], opts Options[T]) *Resource[T] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	closed := make(chan struct{})
	close(closed)
	return &Resource[T]{
		key:      key,
		cache:    c,
		fetch:    fetch,
		log:      logger.With("component", "resource", "key", key),
		onChange: opts.OnChange,
		now:      now,
		snap:     Snapshot[T]{State: StateEmpty},
		done:     closed,
	}
}

// Key returns the cache key.
func (r *Resource[T]) Key() string {
	return r.key
}

// Snapshot returns the current state.
func (r *Resource[T]) Snapshot() Snapshot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Load returns what can be shown right now and starts a background refresh.
//
// Without bypass a live cache entry is returned immediately in
// SHOWING_CACHED_LOADING. With bypass, or on a miss, the cache is not
// consulted; data already on display stays visible while the fetch runs.
// A new Load supersedes any refresh still in flight.
func (r *Resource[T]) Load(ctx context.Context, bypass bool) Snapshot[T] {
	var (
		cached T
		env    *cache.Envelope
		hit    bool
	)
	if !bypass {
		cached, env, hit = cache.Get[T](ctx, r.cache, r.key)
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.gen++
	gen := r.gen

	next := r.snap
	switch {
	case hit:
		next.Data = cached
		next.HasData = true
		next.UpdatedAt = env.Updated()
		next.State = StateShowingCachedLoading
	case next.HasData:
		next.State = StateShowingCachedLoading
	default:
		next.State = StateLoadingFresh
	}
	next.Err = nil
	next.ErrDismissed = false
	t, ok := r.setLocked(next)

	refreshCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.wg.Add(1)
	snap := r.snap
	r.mu.Unlock()

	if ok {
		r.notify(t, snap)
	}
	r.log.Debug("Loading resource", "cache_hit", hit, "bypass", bypass, "state", snap.State)

	go r.refresh(refreshCtx, cancel, gen, bypass, done)
	return snap
}

// Retry forces a network round-trip regardless of cache freshness.
func (r *Resource[T]) Retry(ctx context.Context) Snapshot[T] {
	return r.Load(ctx, true)
}

// Wait blocks until the refresh in flight, if any, has finished.
func (r *Resource[T]) Wait(ctx context.Context) (Snapshot[T], error) {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	select {
	case <-done:
		return r.Snapshot(), nil
	case <-ctx.Done():
		return r.Snapshot(), ctx.Err()
	}
}

// DismissError hides the error banner. Data and state are unchanged.
func (r *Resource[T]) DismissError() {
	r.mu.Lock()
	r.snap.ErrDismissed = true
	r.mu.Unlock()
}

// Close cancels any refresh in flight and waits for every refresh goroutine
// to exit.
func (r *Resource[T]) Close() {
	r.mu.Lock()
	r.closed = true
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Resource[T]) refresh(
	ctx context.Context,
	cancel context.CancelFunc,
	gen uint64,
	bypass bool,
	done chan struct{},
) {
	defer r.wg.Done()
	defer close(done)
	defer cancel()

	value, err := r.fetch(ctx, bypass)
	if cerr := ctx.Err(); cerr != nil {
		// Superseded and closed refreshes are dropped below; a caller
		// cancellation is a failed refresh.
		err = cerr
	}

	var updatedAt time.Time
	if err == nil {
		env, werr := cache.Put(ctx, r.cache, r.key, value)
		if werr != nil {
			r.log.Warn("Failed to write cache", "error", werr)
			updatedAt = r.now()
		} else {
			updatedAt = env.Updated()
		}
	}

	r.mu.Lock()
	if gen != r.gen || r.closed {
		r.mu.Unlock()
		r.log.Debug("Dropping superseded refresh", "error", err)
		return
	}
	next := r.snap
	if err == nil {
		next.Data = value
		next.HasData = true
		next.UpdatedAt = updatedAt
		next.Err = nil
		next.ErrDismissed = false
		next.State = StateShowingFresh
	} else {
		next.Err = err
		next.ErrDismissed = false
		if next.HasData {
			next.State = StateShowingCachedError
		} else {
			next.State = StateError
		}
	}
	t, ok := r.setLocked(next)
	snap := r.snap
	r.mu.Unlock()

	if err != nil {
		r.log.Warn("Refresh failed", "state", snap.State, "error", err)
	}
	if ok {
		r.notify(t, snap)
	}
}

// setLocked applies next if the transition is allowed. r.mu must be held.
func (r *Resource[T]) setLocked(next Snapshot[T]) (Transition, bool) {
	from := r.snap.State
	if !CanTransition(from, next.State) {
		r.log.Error("Rejected state change", "from", from, "to", next.State, "error", ErrInvalidTransition)
		return Transition{}, false
	}
	r.snap = next
	return Transition{From: from, To: next.State, Timestamp: r.now()}, true
}

func (r *Resource[T]) notify(t Transition, snap Snapshot[T]) {
	if r.onChange != nil {
		r.onChange(t, snap)
	}
}
