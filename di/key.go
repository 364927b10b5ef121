package di

import (
	"reflect"
	"strconv"
)

// Key identifies a registration: a Go type plus an optional qualifier.
// Keys are comparable and used directly as map keys. A key qualified with
// the empty string is distinct from an unqualified key.
type Key struct {
	typ       reflect.Type
	qualifier string
	qualified bool
}

// KeyOption adjusts a Key; see Named.
type KeyOption func(*Key)

// Named qualifies a key so several registrations can share one type.
func Named(qualifier string) KeyOption {
	return func(k *Key) {
		k.qualifier = qualifier
		k.qualified = true
	}
}

// KeyOf returns the key for type T with the given options applied.
func KeyOf[T any](opts ...KeyOption) Key {
	k := Key{typ: reflect.TypeFor[T]()}
	for _, opt := range opts {
		opt(&k)
	}
	return k
}

// Type returns the registered type.
func (k Key) Type() reflect.Type { return k.typ }

// Qualifier returns the qualifier and whether one was set.
func (k Key) Qualifier() (string, bool) { return k.qualifier, k.qualified }

func (k Key) typeName() string {
	if k.typ == nil {
		return "<nil>"
	}
	return k.typ.String()
}

// String renders the key as "pkg.Type" or "pkg.Type[qualifier]".
func (k Key) String() string {
	name := k.typeName()
	if !k.qualified {
		return name
	}
	if k.qualifier == "" {
		return name + `[""]`
	}
	return name + "[" + k.qualifier + "]"
}

// GoString quotes the qualifier so keys print unambiguously with %#v.
func (k Key) GoString() string {
	if !k.qualified {
		return "di.Key{" + k.String() + "}"
	}
	return "di.Key{" + k.typeName() + ", " + strconv.Quote(k.qualifier) + "}"
}

func keyStrings(keys []Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
