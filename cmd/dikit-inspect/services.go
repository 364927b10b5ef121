package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kbukum/dikit/di"
)

type clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type settings struct {
	Environment string
}

type greeter struct {
	settings *settings
	clock    clock
	lang     string
}

func (g *greeter) Greet(name string) string {
	return fmt.Sprintf("[%s %s] hello %s (%s)", g.settings.Environment, g.clock.Now().Format(time.Kitchen), name, g.lang)
}

type request struct {
	ID      int64
	Greeter *greeter
}

// registerSampleServices registers a small graph: shared settings and clock
// singletons, two named greeters and a transient per-request value.
func registerSampleServices(reg *di.Registry, env string) {
	var seq atomic.Int64

	di.NewBuilder().
		Add(
			di.AsSingleton(func(di.Resolver) (*settings, error) { return &settings{Environment: env}, nil }),
			di.AsSingleton(func(di.Resolver) (clock, error) { return systemClock{}, nil }),
			di.AsSingleton(newGreeter("en"), di.Named("en")),
		).
		AddIf(env != "production", di.AsSingleton(newGreeter("debug"), di.Named("debug"))).
		Add(di.AsFactory(func(r di.Resolver) (*request, error) {
			g, err := di.Resolve[*greeter](r, di.Named("en"))
			if err != nil {
				return nil, err
			}
			return &request{ID: seq.Add(1), Greeter: g}, nil
		})).
		ApplyTo(reg)
}

func newGreeter(lang string) di.Constructor[*greeter] {
	return func(r di.Resolver) (*greeter, error) {
		s, err := di.Resolve[*settings](r)
		if err != nil {
			return nil, err
		}
		c, err := di.Resolve[clock](r)
		if err != nil {
			return nil, err
		}
		return &greeter{settings: s, clock: c, lang: lang}, nil
	}
}
