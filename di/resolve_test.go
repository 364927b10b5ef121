package di

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/dikit/logger"
)

type service struct{ id int32 }

type nodeA struct{ b *nodeB }
type nodeB struct{ a *nodeA }

type depX struct{ y *depY }
type depY struct{}
type depZ struct {
	x *depX
	y *depY
}

type greeter interface{ Greet() string }

type english struct{}

func (english) Greet() string { return "hello" }

func newTestRegistry() *Registry {
	return New(WithName("test"), WithLogger(logger.Nop()))
}

// countingCtor returns a constructor that numbers each instance it builds.
func countingCtor(calls *atomic.Int32) Constructor[*service] {
	return func(Resolver) (*service, error) {
		return &service{id: calls.Add(1)}, nil
	}
}

func TestResolveSingletonOnce(t *testing.T) {
	reg := newTestRegistry()
	var calls atomic.Int32
	RegisterSingleton(reg, countingCtor(&calls))

	first := MustResolve[*service](reg)
	second := MustResolve[*service](reg)
	if first != second {
		t.Error("expected the same singleton instance")
	}
	if calls.Load() != 1 {
		t.Errorf("expected constructor to run once, ran %d times", calls.Load())
	}
}

func TestResolveSingletonConcurrent(t *testing.T) {
	reg := newTestRegistry()
	var calls atomic.Int32
	release := make(chan struct{})
	RegisterSingleton(reg, func(Resolver) (*service, error) {
		<-release
		return &service{id: calls.Add(1)}, nil
	})

	const workers = 64
	results := make([]*service, workers)
	var started, done sync.WaitGroup
	started.Add(workers)
	done.Add(workers)
	for i := range workers {
		go func() {
			defer done.Done()
			started.Done()
			results[i] = MustResolve[*service](reg)
		}()
	}
	started.Wait()
	time.Sleep(10 * time.Millisecond)
	close(release)
	done.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected one constructor call, got %d", calls.Load())
	}
	for i, s := range results {
		if s != results[0] {
			t.Fatalf("worker %d observed a different instance", i)
		}
	}
}

func TestResolveTransient(t *testing.T) {
	reg := newTestRegistry()
	var calls atomic.Int32
	RegisterFactory(reg, countingCtor(&calls))

	first := MustResolve[*service](reg)
	second := MustResolve[*service](reg)
	if first == second {
		t.Error("expected distinct transient instances")
	}
	if calls.Load() != 2 {
		t.Errorf("expected two constructor calls, got %d", calls.Load())
	}
}

func TestResolveNotRegistered(t *testing.T) {
	reg := newTestRegistry()

	_, err := Resolve[*service](reg)
	var nr *NotRegisteredError
	if !stderrors.As(err, &nr) {
		t.Fatalf("expected *NotRegisteredError, got %v", err)
	}
	if nr.Key != KeyOf[*service]() {
		t.Errorf("unexpected key %s", nr.Key)
	}
	if !stderrors.Is(err, ErrNotRegistered) {
		t.Error("expected errors.Is(err, ErrNotRegistered)")
	}

	v, ok, err := TryResolve[*service](reg)
	if ok || err != nil || v != nil {
		t.Errorf("TryResolve = %v, %v, %v; want nil, false, nil", v, ok, err)
	}
}

func TestMustResolvePanics(t *testing.T) {
	reg := newTestRegistry()

	t.Run("not registered", func(t *testing.T) {
		defer func() {
			r := recover()
			err, ok := r.(error)
			if !ok || !stderrors.Is(err, ErrNotRegistered) {
				t.Errorf("expected panic with NotRegisteredError, got %v", r)
			}
		}()
		MustResolve[*service](reg)
	})

	t.Run("constructor error", func(t *testing.T) {
		boom := fmt.Errorf("boom")
		RegisterFactory(reg, func(Resolver) (*nodeA, error) { return nil, boom })
		defer func() {
			if r := recover(); r != boom {
				t.Errorf("expected panic with constructor error, got %v", r)
			}
		}()
		MustResolve[*nodeA](reg)
	})
}

func TestConstructorErrorPassesThrough(t *testing.T) {
	reg := newTestRegistry()
	boom := fmt.Errorf("dial: refused")
	var calls atomic.Int32
	RegisterSingleton(reg, func(Resolver) (*service, error) {
		calls.Add(1)
		return nil, boom
	})

	if _, err := Resolve[*service](reg); err != boom {
		t.Errorf("Resolve error = %v, want constructor error unchanged", err)
	}

	_, ok, err := TryResolve[*service](reg)
	if ok || err != boom {
		t.Errorf("TryResolve = %v, %v; constructor error must not read as absent", ok, err)
	}

	if calls.Load() != 2 {
		t.Errorf("failed singleton should not be cached, constructor ran %d times", calls.Load())
	}
	if reg.Registrations()[0].Cached {
		t.Error("failed singleton reported as cached")
	}
}

func TestNestedNotRegisteredIsConstructorError(t *testing.T) {
	reg := newTestRegistry()
	RegisterFactory(reg, func(r Resolver) (*nodeA, error) {
		b, err := Resolve[*nodeB](r)
		if err != nil {
			return nil, err
		}
		return &nodeA{b: b}, nil
	})

	_, ok, err := TryResolve[*nodeA](reg)
	if ok {
		t.Fatal("expected resolution to fail")
	}
	if !stderrors.Is(err, ErrNotRegistered) {
		t.Errorf("expected the dependency's NotRegisteredError as an error, got %v", err)
	}
}

func TestResolveCircularChain(t *testing.T) {
	for _, lifetime := range []Lifetime{Singleton, Transient} {
		t.Run(lifetime.String(), func(t *testing.T) {
			reg := newTestRegistry()
			var chain []Key
			Register(reg, lifetime, func(r Resolver) (*nodeA, error) {
				b, err := Resolve[*nodeB](r)
				return &nodeA{b: b}, err
			})
			Register(reg, lifetime, func(r Resolver) (*nodeB, error) {
				_, err := Resolve[*nodeA](r)
				var cc *CircularChainError
				if stderrors.As(err, &cc) {
					chain = cc.Chain
				}
				return &nodeB{}, err
			})

			_, err := Resolve[*nodeA](reg)
			if !stderrors.Is(err, ErrCircularChain) {
				t.Fatalf("expected circular chain error, got %v", err)
			}
			want := []Key{KeyOf[*nodeA](), KeyOf[*nodeB](), KeyOf[*nodeA]()}
			if fmt.Sprint(chain) != fmt.Sprint(want) {
				t.Errorf("chain = %v, want %v", chain, want)
			}
			if got := err.Error(); got != "di: circular dependency: *di.nodeA -> *di.nodeB -> *di.nodeA" {
				t.Errorf("unexpected message %q", got)
			}
		})
	}
}

func TestSelfDependency(t *testing.T) {
	reg := newTestRegistry()
	RegisterSingleton(reg, func(r Resolver) (*service, error) {
		return Resolve[*service](r)
	})

	_, err := Resolve[*service](reg)
	var cc *CircularChainError
	if !stderrors.As(err, &cc) {
		t.Fatalf("expected circular chain error, got %v", err)
	}
	if len(cc.Chain) != 2 {
		t.Errorf("expected chain [K K], got %v", cc.Chain)
	}
}

func TestTransientOptionalCycle(t *testing.T) {
	reg := newTestRegistry()
	var absent atomic.Int32
	RegisterFactory(reg, func(r Resolver) (*nodeA, error) {
		b, ok, err := TryResolve[*nodeB](r)
		if err != nil {
			return nil, err
		}
		if !ok {
			absent.Add(1)
		}
		return &nodeA{b: b}, nil
	})
	RegisterFactory(reg, func(r Resolver) (*nodeB, error) {
		a, ok, err := TryResolve[*nodeA](r)
		if err != nil {
			return nil, err
		}
		if !ok {
			absent.Add(1)
		}
		return &nodeB{a: a}, nil
	})

	done := make(chan *nodeA)
	go func() { done <- MustResolve[*nodeA](reg) }()

	select {
	case a := <-done:
		if a.b == nil {
			t.Fatal("expected A to hold a B")
		}
		if a.b.a != nil {
			t.Error("expected the nested optional resolution of A to be absent")
		}
		if absent.Load() != 1 {
			t.Errorf("expected exactly one absent resolution, got %d", absent.Load())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("resolution deadlocked")
	}
}

func TestCrossGoroutineCycle(t *testing.T) {
	reg := newTestRegistry()
	xStarted := make(chan struct{})
	yStarted := make(chan struct{})
	RegisterSingleton(reg, func(r Resolver) (*nodeA, error) {
		close(xStarted)
		<-yStarted
		b, err := Resolve[*nodeB](r)
		return &nodeA{b: b}, err
	})
	RegisterSingleton(reg, func(r Resolver) (*nodeB, error) {
		close(yStarted)
		<-xStarted
		a, err := Resolve[*nodeA](r)
		return &nodeB{a: a}, err
	})

	errs := make(chan error, 2)
	go func() {
		_, err := Resolve[*nodeA](reg)
		errs <- err
	}()
	go func() {
		_, err := Resolve[*nodeB](reg)
		errs <- err
	}()

	for range 2 {
		select {
		case err := <-errs:
			if !stderrors.Is(err, ErrCircularChain) {
				t.Errorf("expected circular chain error, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("cross-goroutine cycle deadlocked")
		}
	}
}

func TestWaiterSharesConstructorError(t *testing.T) {
	reg := newTestRegistry()
	boom := fmt.Errorf("boom")
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	RegisterSingleton(reg, func(Resolver) (*service, error) {
		once.Do(func() { close(entered) })
		<-release
		return nil, boom
	})

	first := make(chan error, 1)
	go func() {
		_, err := Resolve[*service](reg)
		first <- err
	}()
	<-entered

	second := make(chan error, 1)
	go func() {
		_, err := Resolve[*service](reg)
		second <- err
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)

	if err := <-first; err != boom {
		t.Errorf("first caller got %v", err)
	}
	if err := <-second; err != boom {
		t.Errorf("waiting caller got %v", err)
	}
	if infos := reg.Registrations(); infos[0].Cached {
		t.Error("failed singleton reported as cached")
	}
}

func TestPanickingConstructorIsRetried(t *testing.T) {
	reg := newTestRegistry()
	var calls atomic.Int32
	RegisterSingleton(reg, func(Resolver) (*service, error) {
		if calls.Add(1) == 1 {
			panic("first attempt")
		}
		return &service{id: 2}, nil
	})

	func() {
		defer func() {
			if r := recover(); r != "first attempt" {
				t.Errorf("expected constructor panic to propagate, got %v", r)
			}
		}()
		MustResolve[*service](reg)
	}()

	s, err := Resolve[*service](reg)
	if err != nil || s.id != 2 {
		t.Fatalf("expected retry to succeed, got %v, %v", s, err)
	}
}

func TestResolveQualifiers(t *testing.T) {
	reg := newTestRegistry()
	RegisterValue(reg, "primary-dsn", Named("a"))
	RegisterValue(reg, "replica-dsn", Named("b"))

	if got := MustResolve[string](reg, Named("a")); got != "primary-dsn" {
		t.Errorf("got %q for a", got)
	}
	if got := MustResolve[string](reg, Named("b")); got != "replica-dsn" {
		t.Errorf("got %q for b", got)
	}
	if Contains[string](reg) {
		t.Error("unqualified key should not be registered")
	}

	Unregister[string](reg, Named("a"))
	if Contains[string](reg, Named("a")) {
		t.Error("expected a to be unregistered")
	}
	if got := MustResolve[string](reg, Named("b")); got != "replica-dsn" {
		t.Errorf("unregistering a affected b: %q", got)
	}
}

func TestResolveInterface(t *testing.T) {
	reg := newTestRegistry()
	RegisterSingleton(reg, func(Resolver) (greeter, error) { return english{}, nil })
	RegisterFactory(reg, func(Resolver) (error, error) { return nil, nil })

	if got := MustResolve[greeter](reg).Greet(); got != "hello" {
		t.Errorf("Greet() = %q", got)
	}

	v, ok, err := TryResolve[error](reg)
	if !ok || err != nil || v != nil {
		t.Errorf("nil instance should resolve to the zero value, got %v, %v, %v", v, ok, err)
	}
}

func TestResolverRegistry(t *testing.T) {
	reg := newTestRegistry()
	var seen *Registry
	RegisterFactory(reg, func(r Resolver) (*service, error) {
		seen = r.Registry()
		return &service{}, nil
	})
	MustResolve[*service](reg)
	if seen != reg {
		t.Error("expected the constructor's resolver to report its registry")
	}
	if reg.Registry() != reg {
		t.Error("expected Registry() to return the receiver")
	}
}

func TestCastMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected mismatched instance to panic")
		}
	}()
	cast[*service](KeyOf[*service](), "not a service")
}

func TestWaitCycleIgnoresFinishedWait(t *testing.T) {
	s1, s2 := newSession(nil), newSession(nil)
	y := &construction{key: KeyOf[*depY](), owner: s2}
	x := &construction{key: KeyOf[*depX](), owner: s1}
	s1.waiting = y

	if loop := waitCycle(s2, x); len(loop) != 1 || loop[0] != y.key {
		t.Fatalf("expected a cycle through *di.depY, got %v", loop)
	}

	y.finished = true
	if loop := waitCycle(s2, x); loop != nil {
		t.Errorf("expected a finished wait to end the path, got %v", loop)
	}
}

// Z builds Y and then X while another goroutine builds X, which waits on Y.
// Z -> Y, Z -> X, X -> Y has no cycle, including right after Y finishes and
// before the X goroutine has woken up.
func TestFinishedWaitIsNotACycle(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))

	reg := newTestRegistry()
	yStarted := make(chan struct{})
	releaseY := make(chan struct{})
	xStarted := make(chan struct{})
	RegisterSingleton(reg, func(Resolver) (*depY, error) {
		close(yStarted)
		<-releaseY
		return &depY{}, nil
	})
	RegisterSingleton(reg, func(r Resolver) (*depX, error) {
		close(xStarted)
		y, err := Resolve[*depY](r)
		return &depX{y: y}, err
	})
	RegisterSingleton(reg, func(r Resolver) (*depZ, error) {
		y, err := Resolve[*depY](r)
		if err != nil {
			return nil, err
		}
		x, err := Resolve[*depX](r)
		return &depZ{x: x, y: y}, err
	})

	errZ := make(chan error, 1)
	go func() {
		_, err := Resolve[*depZ](reg)
		errZ <- err
	}()
	<-yStarted

	errX := make(chan error, 1)
	go func() {
		_, err := Resolve[*depX](reg)
		errX <- err
	}()
	<-xStarted
	time.Sleep(20 * time.Millisecond)
	close(releaseY)

	for _, tt := range []struct {
		name string
		errs chan error
	}{{"Z", errZ}, {"X", errX}} {
		select {
		case err := <-tt.errs:
			if err != nil {
				t.Errorf("resolving %s: %v", tt.name, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("resolving %s deadlocked", tt.name)
		}
	}

	z := MustResolve[*depZ](reg)
	if z.x.y != z.y {
		t.Error("expected X and Z to share the Y singleton")
	}
}

func TestSelfResolutionThroughRegistry(t *testing.T) {
	t.Run("resolver context continues the chain", func(t *testing.T) {
		reg := newTestRegistry()
		RegisterSingleton(reg, func(r Resolver) (*service, error) {
			_, err := Resolve[*service](r.Registry().WithContext(r.Context()))
			return nil, err
		})

		_, err := Resolve[*service](reg)
		var cycle *CircularChainError
		if !stderrors.As(err, &cycle) {
			t.Fatalf("expected *CircularChainError, got %v", err)
		}
		if got := keyStrings(cycle.Chain); len(got) != 2 || got[0] != got[1] {
			t.Errorf("unexpected chain %v", got)
		}
	})

	t.Run("unrelated resolution waits until its context is done", func(t *testing.T) {
		reg := newTestRegistry()
		RegisterSingleton(reg, func(Resolver) (*service, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err := Resolve[*service](reg.WithContext(ctx))
			return nil, err
		})

		done := make(chan error, 1)
		go func() {
			_, err := Resolve[*service](reg)
			done <- err
		}()

		select {
		case err := <-done:
			if !stderrors.Is(err, context.DeadlineExceeded) {
				t.Errorf("expected context.DeadlineExceeded, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("self-resolution outlived its context")
		}
		if reg.Registrations()[0].Cached {
			t.Error("failed singleton reported as cached")
		}
	})

	t.Run("canceled wait is returned by TryResolve", func(t *testing.T) {
		reg := newTestRegistry()
		RegisterSingleton(reg, func(r Resolver) (*service, error) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, ok, err := TryResolve[*service](reg.WithContext(ctx))
			if ok || !stderrors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("expected canceled wait, got ok=%v err=%v", ok, err)
			}
			return &service{id: 1}, nil
		})
		if s, err := Resolve[*service](reg); err != nil || s.id != 1 {
			t.Fatalf("got %v, %v", s, err)
		}
	})
}
