package di

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/dikit/logger"
	"github.com/kbukum/dikit/observability"
)

// Resolver looks up registrations. *Registry is a Resolver; constructors
// receive one bound to the resolution in progress, and that handle is only
// valid while the constructor runs. Keep Registry() to resolve after the
// constructor has returned.
//
// Resolving through the *Registry while a constructor runs starts an
// unrelated resolution the registry cannot tie to the running one. If it
// reaches a singleton whose construction is waiting on the caller (its own
// key included) it blocks until that construction finishes, which is never.
// Use the Resolver, or Registry().WithContext(r.Context()), which continues
// the running chain and reports the re-entry as a *CircularChainError.
type Resolver interface {
	// Registry returns the registry the resolver reads from.
	Registry() *Registry
	// Context returns the context constructions run under. Inside a
	// constructor it carries the construction span and the resolution chain.
	Context() context.Context

	resolve(key Key) (any, error)
}

// session is one top-level resolution and everything nested under it.
// waiting is guarded by Registry.mu. A done ctx aborts waits on
// constructions owned by other sessions.
type session struct {
	ctx     context.Context
	waiting *construction
}

func newSession(ctx context.Context) *session {
	if ctx == nil {
		ctx = context.Background()
	}
	return &session{ctx: ctx}
}

type frameKey struct{}

// contextResolver resolves under a caller-supplied context.
type contextResolver struct {
	reg *Registry
	ctx context.Context
}

// WithContext returns a Resolver whose resolutions run under ctx: spans are
// children of ctx's span and waits on other goroutines' constructions give
// up with ctx.Err() once ctx is done. When ctx came from a constructor's
// Resolver.Context for this registry, resolutions continue that
// constructor's chain.
func (r *Registry) WithContext(ctx context.Context) Resolver {
	if ctx == nil {
		ctx = context.Background()
	}
	return &contextResolver{reg: r, ctx: ctx}
}

func (c *contextResolver) Registry() *Registry { return c.reg }

func (c *contextResolver) Context() context.Context { return c.ctx }

func (c *contextResolver) resolve(key Key) (any, error) {
	if f, ok := c.ctx.Value(frameKey{}).(*frame); ok && f.reg == c.reg {
		return f.resolve(key)
	}
	return c.reg.resolveIn(newSession(c.ctx), nil, key)
}

// frame is a resolution in progress. Frames link to their parent so the
// chain of keys being resolved is carried explicitly instead of per goroutine.
type frame struct {
	reg     *Registry
	key     Key
	parent  *frame
	session *session
	ctx     context.Context
}

func (f *frame) Registry() *Registry { return f.reg }

func (f *frame) Context() context.Context { return f.context() }

func (f *frame) resolve(key Key) (any, error) {
	return f.reg.resolveIn(f.session, f, key)
}

// contains reports whether key is being resolved by f or one of its parents.
func (f *frame) contains(key Key) bool {
	for ; f != nil; f = f.parent {
		if f.key == key {
			return true
		}
	}
	return false
}

// chain returns the keys from the outermost resolution down to f.
func (f *frame) chain() []Key {
	var keys []Key
	for ; f != nil; f = f.parent {
		keys = append(keys, f.key)
	}
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

func (f *frame) context() context.Context {
	if f == nil {
		return context.Background()
	}
	if f.ctx != nil {
		return f.ctx
	}
	return f.session.ctx
}

// spanParent is the context a construction of f starts its span under.
func (f *frame) spanParent() context.Context {
	if f.parent != nil {
		return f.parent.context()
	}
	return f.session.ctx
}

// construction is a singleton build in flight. err and completed are written
// before done is closed; finished is set under Registry.mu just before.
type construction struct {
	key       Key
	entry     *Entry
	owner     *session
	done      chan struct{}
	err       error
	completed bool
	finished  bool
}

// waitCycle reports the keys sess would deadlock on by waiting for c: each
// session on the path waits for a construction owned by the next, ending back
// at sess. A wait on a finished construction is over even if its session has
// not woken up yet, so it ends the path. It returns nil when waiting is safe.
// Called with r.mu held.
func waitCycle(sess *session, c *construction) []Key {
	if c.owner == sess {
		return nil
	}
	var keys []Key
	for s := c.owner; s.waiting != nil && !s.waiting.finished; s = s.waiting.owner {
		keys = append(keys, s.waiting.key)
		if s.waiting.owner == sess {
			return keys
		}
	}
	return nil
}

// resolve starts a new top-level resolution.
func (r *Registry) resolve(key Key) (any, error) {
	return r.resolveIn(newSession(nil), nil, key)
}

// resolveIn resolves key on behalf of parent. It returns *NotRegisteredError
// or *CircularChainError for lookup failures of key itself and a
// *constructorFailure for anything a constructor returned.
func (r *Registry) resolveIn(sess *session, parent *frame, key Key) (any, error) {
	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		return nil, r.notRegistered(parent, key)
	}
	if parent.contains(key) {
		r.mu.Unlock()
		return nil, r.circular(parent, key, nil)
	}

	f := &frame{reg: r, key: key, parent: parent, session: sess}
	for {
		if entry.lifetime == Transient {
			r.mu.Unlock()
			return r.construct(f, entry)
		}

		if cached, ok := r.instances[key]; ok {
			r.mu.Unlock()
			r.observeResolution(parent, key, observability.OutcomeHit)
			return cached.value, nil
		}

		c, busy := r.inflight[key]
		if !busy {
			c = &construction{key: key, entry: entry, owner: sess, done: make(chan struct{})}
			r.inflight[key] = c
			r.mu.Unlock()
			return r.build(f, c)
		}

		if loop := waitCycle(sess, c); loop != nil {
			r.mu.Unlock()
			return nil, r.circular(parent, key, loop)
		}
		if c.owner != sess {
			sess.waiting = c
		}
		r.mu.Unlock()

		select {
		case <-c.done:
		case <-sess.ctx.Done():
			r.mu.Lock()
			sess.waiting = nil
			r.mu.Unlock()
			return nil, &constructorFailure{err: sess.ctx.Err()}
		}

		r.mu.Lock()
		sess.waiting = nil
		current, ok := r.entries[key]
		if !ok {
			r.mu.Unlock()
			return nil, r.notRegistered(parent, key)
		}
		if c.completed && c.err != nil && current == c.entry {
			r.mu.Unlock()
			return nil, c.err
		}
		// Completed, replaced or aborted by a panic: look again.
		entry = current
	}
}

// build runs a singleton construction and publishes its outcome. The instance
// is cached only if the registration that produced it is still current.
func (r *Registry) build(f *frame, c *construction) (value any, err error) {
	defer func() {
		r.mu.Lock()
		if r.inflight[c.key] == c {
			delete(r.inflight, c.key)
		}
		stored := false
		if c.completed && err == nil && r.entries[c.key] == c.entry {
			r.seq++
			r.instances[c.key] = &cachedInstance{value: value, seq: r.seq}
			stored = true
		}
		c.finished = true
		r.mu.Unlock()
		close(c.done)

		if stored {
			r.metrics.RecordCached(f.context(), r.name, 1)
		}
	}()

	value, err = r.construct(f, c.entry)
	c.err = err
	c.completed = true
	return value, err
}

// construct invokes the entry's constructor outside the registry lock.
func (r *Registry) construct(f *frame, entry *Entry) (any, error) {
	service := f.key.String()
	ctx, span := r.tracer.Start(f.spanParent(), observability.SpanConstruct,
		trace.WithAttributes(
			attribute.String(observability.AttrRegistry, r.name),
			attribute.String(observability.AttrService, service),
			attribute.String(observability.AttrLifetime, entry.lifetime.String()),
		),
	)
	defer span.End()
	f.ctx = context.WithValue(ctx, frameKey{}, f)

	start := time.Now()
	value, err := entry.construct(f)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Int64(observability.AttrDurationMs, elapsed.Milliseconds()))
	r.metrics.RecordConstruction(ctx, r.name, service, entry.lifetime.String(), elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.observeResolution(f.parent, f.key, observability.OutcomeFailed)
		r.log.Warn("constructor failed", logger.MergeWithError(logger.Fields(
			logger.FieldService, service,
			logger.FieldLifetime, entry.lifetime.String(),
			logger.FieldDuration, elapsed.Milliseconds(),
		), err))
		return nil, &constructorFailure{err: err}
	}

	r.observeResolution(f.parent, f.key, observability.OutcomeConstructed)
	if r.logResolutions {
		r.log.Debug("constructed", logger.Fields(
			logger.FieldService, service,
			logger.FieldLifetime, entry.lifetime.String(),
			logger.FieldDuration, elapsed.Milliseconds(),
		))
	}
	return value, nil
}

func (r *Registry) notRegistered(parent *frame, key Key) error {
	r.observeResolution(parent, key, observability.OutcomeNotRegistered)
	return &NotRegisteredError{Key: key}
}

// circular builds the error for a resolution of key that would re-enter the
// chain. loop holds the keys other sessions are waiting on when the cycle
// spans goroutines.
func (r *Registry) circular(parent *frame, key Key, loop []Key) error {
	chain := append(parent.chain(), key)
	chain = append(chain, loop...)
	r.observeResolution(parent, key, observability.OutcomeCircular)
	r.log.Warn("circular dependency detected", logger.Fields(
		logger.FieldService, key.String(),
		logger.FieldChain, keyStrings(chain),
	))
	return &CircularChainError{Chain: chain}
}

func (r *Registry) observeResolution(parent *frame, key Key, outcome string) {
	r.metrics.RecordResolution(parent.context(), r.name, key.String(), outcome)
	if r.logResolutions && outcome != observability.OutcomeConstructed && outcome != observability.OutcomeFailed {
		r.log.Debug("resolved", logger.Fields(
			logger.FieldService, key.String(),
			logger.FieldOutcome, outcome,
		))
	}
}
