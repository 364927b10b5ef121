package di

import (
	"fmt"
	"strings"
)

// Lifetime determines how often a registration's constructor runs.
type Lifetime int

const (
	Singleton Lifetime = iota // Constructed once per registry, then cached
	Transient                 // Constructed on every resolution
)

// String returns "singleton" or "transient".
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("lifetime(%d)", int(l))
	}
}

// MarshalText renders the lifetime for JSON introspection output.
func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// ParseLifetime parses "singleton" or "transient" ("factory" is accepted as an alias).
func ParseLifetime(s string) (Lifetime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "singleton":
		return Singleton, nil
	case "transient", "factory":
		return Transient, nil
	default:
		return 0, fmt.Errorf("di: unknown lifetime %q", s)
	}
}
