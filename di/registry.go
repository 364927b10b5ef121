package di

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kbukum/dikit/logger"
	"github.com/kbukum/dikit/observability"
)

const instrumentationName = "github.com/kbukum/dikit/di"

type cachedInstance struct {
	value any
	seq   uint64
}

// Registry maps keys to registrations and caches singleton instances.
// It is safe for concurrent use. No lock is held while a constructor runs,
// so constructors may resolve, register or unregister freely.
type Registry struct {
	id             string
	name           string
	logResolutions bool

	mu        sync.Mutex
	entries   map[Key]*Entry
	instances map[Key]*cachedInstance
	inflight  map[Key]*construction
	seq       uint64

	log     *logger.Logger
	metrics *observability.RegistryMetrics
	tracer  trace.Tracer
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	cfg     Config
	log     *logger.Logger
	metrics *observability.RegistryMetrics
	tracer  trace.Tracer
}

// WithConfig sets the registry configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithName sets the registry name.
func WithName(name string) Option {
	return func(o *options) { o.cfg.Name = name }
}

// WithLogger sets the logger. Defaults to the "di" named logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records resolutions on m regardless of Config.Metrics.
func WithMetrics(m *observability.RegistryMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer opens construction spans on t regardless of Config.Tracing.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.cfg.ApplyDefaults()

	id := o.cfg.ID
	if id == "" {
		id = uuid.NewString()
	}

	log := o.log
	if log == nil {
		log = logger.Get("di")
	}
	log = log.WithFields(logger.Fields(logger.FieldRegistry, o.cfg.Name, "registry_id", id))

	metrics := o.metrics
	if metrics == nil && o.cfg.Metrics {
		m, err := observability.NewRegistryMetrics(observability.Meter(instrumentationName))
		if err != nil {
			log.Warn("registry metrics disabled", logger.ErrorFields("metrics", err))
		} else {
			metrics = m
		}
	}

	tracer := o.tracer
	if tracer == nil {
		if o.cfg.Tracing {
			tracer = observability.Tracer(instrumentationName)
		} else {
			tracer = noop.NewTracerProvider().Tracer(instrumentationName)
		}
	}

	return &Registry{
		id:             id,
		name:           o.cfg.Name,
		logResolutions: o.cfg.LogResolutions,
		entries:        make(map[Key]*Entry),
		instances:      make(map[Key]*cachedInstance),
		inflight:       make(map[Key]*construction),
		log:            log,
		metrics:        metrics,
		tracer:         tracer,
	}
}

// ID returns the registry identifier.
func (r *Registry) ID() string { return r.id }

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Registry returns r.
func (r *Registry) Registry() *Registry { return r }

// Context returns context.Background(); use WithContext to resolve under
// another context.
func (r *Registry) Context() context.Context { return context.Background() }

// Register stores entry under its key, replacing any previous registration.
// A singleton cached for the key is discarded, so the next resolution runs
// the new constructor. A nil entry is ignored.
func (r *Registry) Register(entry *Entry) {
	if entry == nil {
		return
	}
	r.mu.Lock()
	_, replaced := r.entries[entry.key]
	r.entries[entry.key] = entry
	evicted := r.dropLocked(entry.key)
	r.mu.Unlock()

	r.metrics.RecordCached(context.Background(), r.name, -evicted)
	r.log.Debug("registered", logger.Fields(
		logger.FieldService, entry.key.String(),
		logger.FieldLifetime, entry.lifetime.String(),
		"replaced", replaced,
	))
}

// Unregister removes the registration and any cached instance for key.
// Unknown keys are ignored.
func (r *Registry) Unregister(key Key) {
	r.mu.Lock()
	_, ok := r.entries[key]
	delete(r.entries, key)
	evicted := r.dropLocked(key)
	r.mu.Unlock()

	r.metrics.RecordCached(context.Background(), r.name, -evicted)
	if ok {
		r.log.Debug("unregistered", logger.Fields(logger.FieldService, key.String()))
	}
}

// dropLocked forgets the cached instance and any construction in flight for
// key. A dropped construction still finishes but its result is not cached.
func (r *Registry) dropLocked(key Key) int64 {
	delete(r.inflight, key)
	if _, ok := r.instances[key]; ok {
		delete(r.instances, key)
		return 1
	}
	return 0
}

// Reset removes every registration and cached instance. Cached instances are
// not closed; call Close first to release them.
func (r *Registry) Reset() {
	r.mu.Lock()
	registrations := len(r.entries)
	evicted := int64(len(r.instances))
	r.entries = make(map[Key]*Entry)
	r.instances = make(map[Key]*cachedInstance)
	r.inflight = make(map[Key]*construction)
	r.mu.Unlock()

	r.metrics.RecordCached(context.Background(), r.name, -evicted)
	r.log.Info("registry reset", logger.Fields(logger.FieldCount, registrations))
}

// Contains reports whether key is registered.
func (r *Registry) Contains(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// RegistrationInfo describes one registration.
type RegistrationInfo struct {
	Key      Key      `json:"-"`
	Service  string   `json:"service"`
	Lifetime Lifetime `json:"lifetime"`
	Cached   bool     `json:"cached"`
}

// Registrations returns a snapshot of all registrations ordered by key.
func (r *Registry) Registrations() []RegistrationInfo {
	r.mu.Lock()
	out := make([]RegistrationInfo, 0, len(r.entries))
	for key, entry := range r.entries {
		_, cached := r.instances[key]
		out = append(out, RegistrationInfo{
			Key:      key,
			Service:  key.String(),
			Lifetime: entry.lifetime,
			Cached:   cached,
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

// WarmSingletons constructs every registered singleton that is not cached
// yet, in key order. Each construction goes through the normal resolution
// path. Failures do not stop the pass; they are joined into the result and
// the failed singletons stay unconstructed.
func (r *Registry) WarmSingletons() error {
	return r.WarmSingletonsContext(context.Background())
}

// WarmSingletonsContext is WarmSingletons with construction spans parented
// under ctx's span. Once ctx is done, singletons being built by other
// goroutines are no longer waited for and are reported as failures.
func (r *Registry) WarmSingletonsContext(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, observability.SpanWarm,
		trace.WithAttributes(attribute.String(observability.AttrRegistry, r.name)))
	defer span.End()

	r.mu.Lock()
	var pending []Key
	for key, entry := range r.entries {
		if _, ok := r.instances[key]; !ok && entry.lifetime == Singleton {
			pending = append(pending, key)
		}
	}
	r.mu.Unlock()
	sort.Slice(pending, func(i, j int) bool { return pending[i].String() < pending[j].String() })

	start := time.Now()
	var errs []error
	warmed := 0
	for _, key := range pending {
		if !r.isSingleton(key) {
			continue
		}
		if _, err := r.resolveIn(newSession(ctx), nil, key); err != nil {
			if _, gone := err.(*NotRegisteredError); gone {
				continue
			}
			errs = append(errs, fmt.Errorf("warm %s: %w", key, callerError(err)))
			continue
		}
		warmed++
	}
	span.SetAttributes(attribute.Int(observability.AttrCount, warmed))

	err := stderrors.Join(errs...)
	fields := logger.Fields(
		logger.FieldCount, warmed,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	)
	if err != nil {
		span.RecordError(err)
		r.log.Warn("singleton warm-up incomplete", logger.MergeWithError(fields, err))
		return err
	}
	r.log.Info("singletons warmed", fields)
	return nil
}

// isSingleton reports whether key is still a registered singleton.
func (r *Registry) isSingleton(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[key]
	return ok && entry.lifetime == Singleton
}

// Close releases cached singletons that implement io.Closer, most recently
// constructed first, and empties the cache. Registrations are kept, so
// singletons are constructed again on their next resolution.
func (r *Registry) Close() error {
	r.mu.Lock()
	cached := make([]*cachedInstance, 0, len(r.instances))
	keys := make(map[*cachedInstance]Key, len(r.instances))
	for key, inst := range r.instances {
		cached = append(cached, inst)
		keys[inst] = key
	}
	r.instances = make(map[Key]*cachedInstance)
	r.mu.Unlock()

	r.metrics.RecordCached(context.Background(), r.name, -int64(len(cached)))
	sort.Slice(cached, func(i, j int) bool { return cached[i].seq > cached[j].seq })

	var errs []error
	for _, inst := range cached {
		closer, ok := inst.value.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			key := keys[inst]
			r.log.Warn("close failed", logger.MergeWithError(logger.Fields(logger.FieldService, key.String()), err))
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
	}
	return stderrors.Join(errs...)
}

// CheckHealth reports the registry as a health component.
func (r *Registry) CheckHealth(context.Context) observability.Health {
	r.mu.Lock()
	registrations, cached, inflight := len(r.entries), len(r.instances), len(r.inflight)
	r.mu.Unlock()

	return observability.Health{
		Name:   "registry:" + r.name,
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"id":            r.id,
			"registrations": fmt.Sprint(registrations),
			"cached":        fmt.Sprint(cached),
			"constructing":  fmt.Sprint(inflight),
		},
	}
}
