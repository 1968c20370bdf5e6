package rules

// Engine compiles rule sets. It carries the named comparator strategies that
// `custom` comparator specs refer to; a rule set stays pure data while
// orderings that cannot be expressed declaratively are injected here.
type Engine struct {
	comparators map[string]Comparator
}

// Option configures an Engine via functional options.
type Option func(*Engine)

// WithComparator registers a named ordering for `custom` comparator specs.
// Registering the same name twice keeps the last strategy.
func WithComparator(name string, c Comparator) Option {
	return func(e *Engine) {
		e.comparators[name] = c
	}
}

// NewEngine creates a rules engine with the given strategies.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{comparators: make(map[string]Comparator)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
