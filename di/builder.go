package di

// Directive is one step of declarative registration. *Entry is a Directive;
// DirectiveFunc adapts arbitrary registration code.
type Directive interface {
	Apply(reg *Registry)
}

// DirectiveFunc adapts a function to a Directive.
type DirectiveFunc func(reg *Registry)

// Apply calls f(reg).
func (f DirectiveFunc) Apply(reg *Registry) { f(reg) }

// Group bundles directives so a module can expose its registrations as one
// value. Its directives apply in order.
type Group []Directive

// Apply applies every directive in the group.
func (g Group) Apply(reg *Registry) {
	for _, d := range g {
		if d != nil {
			d.Apply(reg)
		}
	}
}

// Builder accumulates directives and applies them, in insertion order, to a
// registry. Later directives for the same key replace earlier ones.
//
//	reg, err := di.NewBuilder(di.WithName("billing")).
//	    Add(di.AsValue(cfg), di.AsSingleton(NewStore)).
//	    AddIf(cfg.Cache, di.AsSingleton(NewCache)).
//	    BuildAndWarm()
type Builder struct {
	opts       []Option
	directives Group
}

// NewBuilder creates a Builder whose Build uses opts for the new registry.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{opts: opts}
}

// Add appends directives.
func (b *Builder) Add(directives ...Directive) *Builder {
	b.directives = append(b.directives, directives...)
	return b
}

// AddIf appends directives only when cond is true.
func (b *Builder) AddIf(cond bool, directives ...Directive) *Builder {
	if cond {
		b.Add(directives...)
	}
	return b
}

// AddEither appends then when cond is true and otherwise.
func (b *Builder) AddEither(cond bool, then, otherwise Directive) *Builder {
	if cond {
		return b.Add(then)
	}
	return b.Add(otherwise)
}

// Len returns the number of directives added so far.
func (b *Builder) Len() int { return len(b.directives) }

// ApplyTo applies the accumulated directives to reg.
func (b *Builder) ApplyTo(reg *Registry) {
	b.directives.Apply(reg)
}

// Build creates a registry and applies the accumulated directives to it.
func (b *Builder) Build() *Registry {
	reg := New(b.opts...)
	b.ApplyTo(reg)
	return reg
}

// BuildAndWarm builds the registry and constructs its singletons. The
// registry is returned even when warm-up fails.
func (b *Builder) BuildAndWarm() (*Registry, error) {
	reg := b.Build()
	return reg, reg.WarmSingletons()
}
