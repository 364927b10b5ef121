package di

// Constructor builds an instance of T. The Resolver it receives is bound to
// the resolution in progress, so nested lookups through it take part in
// cycle detection.
type Constructor[T any] func(r Resolver) (T, error)

// Entry is a type-erased registration: a key, a lifetime and a constructor.
// Entries are also Directives, so a Builder can collect them.
type Entry struct {
	key       Key
	lifetime  Lifetime
	construct func(r Resolver) (any, error)
}

// NewEntry wraps a typed constructor into an Entry keyed by T.
func NewEntry[T any](lifetime Lifetime, ctor Constructor[T], opts ...KeyOption) *Entry {
	return &Entry{
		key:      KeyOf[T](opts...),
		lifetime: lifetime,
		construct: func(r Resolver) (any, error) {
			v, err := ctor(r)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// AsSingleton returns a singleton Entry for T.
func AsSingleton[T any](ctor Constructor[T], opts ...KeyOption) *Entry {
	return NewEntry(Singleton, ctor, opts...)
}

// AsFactory returns a transient Entry for T.
func AsFactory[T any](ctor Constructor[T], opts ...KeyOption) *Entry {
	return NewEntry(Transient, ctor, opts...)
}

// AsValue returns a singleton Entry whose instance is v.
func AsValue[T any](v T, opts ...KeyOption) *Entry {
	return NewEntry(Singleton, func(Resolver) (T, error) { return v, nil }, opts...)
}

// Key returns the entry's service identity.
func (e *Entry) Key() Key { return e.key }

// Lifetime returns the entry's lifetime.
func (e *Entry) Lifetime() Lifetime { return e.lifetime }

// Equal reports whether both entries share key and lifetime. Constructors are
// not compared.
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.key == other.key && e.lifetime == other.lifetime
}

// Apply registers the entry with reg.
func (e *Entry) Apply(reg *Registry) {
	reg.Register(e)
}
