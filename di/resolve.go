package di

import "fmt"

// Resolve returns the instance registered for T (and the qualifier, if
// given). It returns *NotRegisteredError or *CircularChainError when the key
// cannot be resolved, and a constructor's error unchanged when construction
// fails.
func Resolve[T any](r Resolver, opts ...KeyOption) (T, error) {
	key := KeyOf[T](opts...)
	inst, err := r.resolve(key)
	if err != nil {
		var zero T
		return zero, callerError(err)
	}
	return cast[T](key, inst), nil
}

// TryResolve is the optional form of Resolve. A missing registration or a
// cyclic request reports ok == false with a nil error. Constructor failures
// are still returned as errors.
func TryResolve[T any](r Resolver, opts ...KeyOption) (v T, ok bool, err error) {
	key := KeyOf[T](opts...)
	inst, err := r.resolve(key)
	if err != nil {
		if cf, failed := err.(*constructorFailure); failed {
			return v, false, cf.err
		}
		return v, false, nil
	}
	return cast[T](key, inst), true, nil
}

// MustResolve is like Resolve but panics with the error on failure. Use it
// where a missing dependency is a wiring bug.
func MustResolve[T any](r Resolver, opts ...KeyOption) T {
	v, err := Resolve[T](r, opts...)
	if err != nil {
		panic(err)
	}
	return v
}

// cast converts a resolved instance to T. A nil instance yields the zero T.
func cast[T any](key Key, inst any) T {
	if inst == nil {
		var zero T
		return zero
	}
	v, ok := inst.(T)
	if !ok {
		panic(fmt.Sprintf("di: %s resolved to %T", key, inst))
	}
	return v
}

// Register registers ctor for T with the given lifetime.
func Register[T any](reg *Registry, lifetime Lifetime, ctor Constructor[T], opts ...KeyOption) {
	reg.Register(NewEntry(lifetime, ctor, opts...))
}

// RegisterSingleton registers ctor for T, constructed at most once.
func RegisterSingleton[T any](reg *Registry, ctor Constructor[T], opts ...KeyOption) {
	reg.Register(AsSingleton(ctor, opts...))
}

// RegisterFactory registers ctor for T, constructed on every resolution.
func RegisterFactory[T any](reg *Registry, ctor Constructor[T], opts ...KeyOption) {
	reg.Register(AsFactory(ctor, opts...))
}

// RegisterValue registers an existing instance for T.
func RegisterValue[T any](reg *Registry, v T, opts ...KeyOption) {
	reg.Register(AsValue(v, opts...))
}

// Contains reports whether T (and the qualifier, if given) is registered.
func Contains[T any](reg *Registry, opts ...KeyOption) bool {
	return reg.Contains(KeyOf[T](opts...))
}

// Unregister removes the registration for T (and the qualifier, if given).
func Unregister[T any](reg *Registry, opts ...KeyOption) {
	reg.Unregister(KeyOf[T](opts...))
}
