package qb

import "strings"

type Callback func(*Builder) *Builder

// EagerLoad is a relation registered for loading once the owning query has
// run. Constraint narrows the related query; Nested usually registers
// further eager loads on it.
type EagerLoad struct {
	Name       string
	Constraint Callback
	Nested     Callback
}

// Apply runs the constraint and then the nested callback on b.
func (e EagerLoad) Apply(b *Builder) *Builder {
	return chain(e.Constraint, e.Nested).apply(b)
}

func (c Callback) apply(b *Builder) *Builder {
	if c == nil {
		return b
	}
	if out := c(b); out != nil {
		return out
	}
	return b
}

func chain(first, second Callback) Callback {
	if first == nil {
		return second
	}
	if second == nil {
		return first
	}
	return func(b *Builder) *Builder {
		return second.apply(first.apply(b))
	}
}

// With registers relations for eager loading. A dotted name such as
// "posts.comments" loads comments on every loaded post.
func (b *Builder) With(names ...string) *Builder {
	for _, name := range names {
		b.WithFunc(name, nil, nil)
	}
	return b
}

func (b *Builder) WithFunc(name string, constraint, nested Callback) *Builder {
	if head, rest, dotted := strings.Cut(name, "."); dotted {
		return b.register(head, nil, func(sub *Builder) *Builder {
			return sub.WithFunc(rest, constraint, nested)
		})
	}
	return b.register(name, constraint, nested)
}

func (b *Builder) register(name string, constraint, nested Callback) *Builder {
	for i, e := range b.eager {
		if e.Name == name {
			b.eager[i].Constraint = chain(e.Constraint, constraint)
			b.eager[i].Nested = chain(e.Nested, nested)
			return b
		}
	}
	b.eager = append(b.eager, EagerLoad{Name: name, Constraint: constraint, Nested: nested})
	return b
}

func (b *Builder) Without(names ...string) *Builder {
	drop := map[string]bool{}
	for _, n := range names {
		drop[n] = true
	}
	kept := b.eager[:0:0]
	for _, e := range b.eager {
		if !drop[e.Name] {
			kept = append(kept, e)
		}
	}
	b.eager = kept
	return b
}

// EagerLoads returns the registered eager loads in registration order.
func (b *Builder) EagerLoads() []EagerLoad {
	return append([]EagerLoad(nil), b.eager...)
}
