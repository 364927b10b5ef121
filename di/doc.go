// Package di provides a dependency injection registry.
//
// A registration maps a Key (a Go type plus an optional qualifier) to a
// constructor and a Lifetime. Singletons are constructed once per registry
// and cached; transients are constructed on every resolution.
//
// # Registration
//
//	reg := di.New(di.WithName("billing"))
//	di.RegisterValue(reg, cfg)
//	di.RegisterSingleton(reg, func(r di.Resolver) (*Store, error) {
//	    return NewStore(di.MustResolve[Config](r))
//	})
//	di.RegisterFactory(reg, NewRequestID, di.Named("request"))
//
// # Resolution
//
//	store, err := di.Resolve[*Store](reg)              // *NotRegisteredError, *CircularChainError or the constructor's error
//	cache, ok, err := di.TryResolve[*Cache](reg)       // ok is false when Cache is not registered
//	id := di.MustResolve[string](reg, di.Named("request"))
//
// Constructors receive a Resolver bound to the resolution in progress.
// Resolving through it lets the registry see the chain of keys being built
// and report a re-entry as a *CircularChainError instead of recursing.
//
// Concurrent first resolutions of a singleton share one constructor call.
// Waiting on a construction owned by another goroutine that is itself
// waiting on this one is also reported as a circular dependency.
//
// Do not resolve through the *Registry from inside a constructor. That starts
// a separate resolution the registry cannot link to the running one, and a
// singleton whose construction is waiting on the caller (its own key
// included) then blocks forever. Inside a constructor use the Resolver it
// was given, or reg.WithContext(r.Context()) to continue the same chain.
// Resolutions made through WithContext stop waiting on other goroutines'
// constructions once the context is done.
package di
