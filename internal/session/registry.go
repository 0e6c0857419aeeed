package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "heart-risk-dashboard/internal/common/errors"
	"heart-risk-dashboard/internal/common/logger"
	"heart-risk-dashboard/internal/common/metrics"
	"heart-risk-dashboard/internal/form"
	"heart-risk-dashboard/internal/schema"
)

const storeTimeout = 2 * time.Second

// Registry holds one form controller per session id. Controllers are
// created on first use, seeded from the store when a snapshot exists, and
// dropped after ttl without activity.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry

	schema    *schema.Schema
	predictor form.Predictor
	store     Store
	ttl       time.Duration
	formOpts  []form.Option
	logger    logger.Logger
	now       func() time.Time
}

type entry struct {
	ctrl     *form.Controller
	lastSeen time.Time
	saved    Snapshot
}

type Config struct {
	Schema    *schema.Schema
	Predictor form.Predictor
	Store     Store
	TTL       time.Duration
	Logger    logger.Logger
	// FormOptions apply to every controller the registry creates.
	FormOptions []form.Option
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore(cfg.TTL)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	return &Registry{
		sessions:  make(map[string]*entry),
		schema:    cfg.Schema,
		predictor: cfg.Predictor,
		store:     cfg.Store,
		ttl:       cfg.TTL,
		formOpts:  cfg.FormOptions,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like one NewID produced.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns the controller for id, creating it if needed. Every access
// also restarts the expiry of the stored snapshot, so a session that is only
// read keeps its saved state for as long as its controller lives.
func (r *Registry) Get(ctx context.Context, id string) *form.Controller {
	r.mu.Lock()
	if e, ok := r.sessions[id]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		r.touch(ctx, id)
		return e.ctrl
	}
	r.mu.Unlock()

	e := r.build(ctx, id)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok {
		existing.lastSeen = r.now()
		return existing.ctrl
	}
	r.sessions[id] = e
	metrics.SessionsActive.Set(float64(len(r.sessions)))
	return e.ctrl
}

func (r *Registry) build(ctx context.Context, id string) *entry {
	e := &entry{lastSeen: r.now()}

	opts := append([]form.Option{}, r.formOpts...)
	opts = append(opts, form.WithLogger(r.logger.With(map[string]interface{}{"session": id})))

	loadCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	snap, err := r.store.Load(loadCtx, id)
	cancel()
	switch {
	case err == nil:
		opts = append(opts, form.WithInitial(snap.Values, snap.Result))
		e.saved = snap
		r.logger.Debug("Restored session", map[string]interface{}{"session": id})
	case errors.Is(err, ErrNotFound):
	default:
		r.logger.WithError(apperrors.NewSessionStoreFailedError("load", err)).
			Warn("Starting session from defaults", map[string]interface{}{"session": id})
	}

	opts = append(opts, form.WithObserver(func(s form.State) { r.persist(id, e, s) }))
	e.ctrl = form.New(r.schema, r.predictor, opts...)
	return e
}

func (r *Registry) touch(ctx context.Context, id string) {
	touchCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	err := r.store.Touch(touchCtx, id)
	if err == nil || errors.Is(err, ErrNotFound) {
		return
	}
	r.logger.WithError(apperrors.NewSessionStoreFailedError("touch", err)).
		Warn("Session snapshot expiry not refreshed", map[string]interface{}{"session": id})
}

// persist runs under the controller's lock, so saves for one session are
// written in transition order. Only changes to values or result are saved.
func (r *Registry) persist(id string, e *entry, s form.State) {
	snap := snapshotOf(s)
	if reflect.DeepEqual(snap, e.saved) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := r.store.Save(ctx, id, snap); err != nil {
		r.logger.WithError(apperrors.NewSessionStoreFailedError("save", err)).
			Warn("Session snapshot not saved", map[string]interface{}{"session": id})
		return
	}
	e.saved = snap
}

// Sweep drops controllers idle for longer than ttl. Controllers with a
// request in flight are kept. It returns the number removed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	removed := 0
	for id, e := range r.sessions {
		if e.lastSeen.After(cutoff) || e.ctrl.Snapshot().InFlight() {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	metrics.SessionsActive.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	if p, ok := r.store.(purger); ok {
		p.Purge()
	}
	if removed > 0 {
		r.logger.Debug("Swept idle sessions", map[string]interface{}{"removed": removed})
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
