// Package rules implements the small condition language used by philosophy
// signals and exclusions, e.g.
//
//	pct_equity between 0.50 and 0.95 and rebalance_frequency in [annual, threshold]
//
// Operands may be combined with + - * / and wrapped in abs(). List items
// are the raw text between commas, so [monthly, ad-hoc] needs no quotes;
// quote an item only to keep a comma in it. Rules are
// parsed into an expression tree and evaluated against a Context.
// A rule that cannot be parsed never fails the caller: it compiles to a
// predicate that is always false.
package rules

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Predicate is a compiled rule.
type Predicate func(ctx Context) bool

// Never is the predicate used for rules that failed to compile.
func Never(Context) bool { return false }

// FailureHook observes rules that failed to compile.
type FailureHook func(rule string, err error)

// Compiler turns rule text into predicates and caches them by text.
// It is safe for concurrent use.
type Compiler struct {
	log    zerolog.Logger
	onFail FailureHook

	mu    sync.RWMutex
	cache map[string]Predicate
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used to report broken rules.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Compiler) { c.log = l.With().Str("component", "rules").Logger() }
}

// WithFailureHook registers fn to be called for every rule that fails to
// compile. Cached failures are reported once.
func WithFailureHook(fn FailureHook) Option {
	return func(c *Compiler) { c.onFail = fn }
}

// NewCompiler creates a Compiler.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		log:   zerolog.Nop(),
		cache: make(map[string]Predicate),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile returns the predicate for rule. Broken rules are logged and
// compile to Never.
func (c *Compiler) Compile(rule string) Predicate {
	c.mu.RLock()
	pred, ok := c.cache[rule]
	c.mu.RUnlock()
	if ok {
		return pred
	}

	pred = c.build(rule)

	c.mu.Lock()
	if cached, ok := c.cache[rule]; ok {
		pred = cached
	} else {
		c.cache[rule] = pred
	}
	c.mu.Unlock()
	return pred
}

func (c *Compiler) build(rule string) Predicate {
	node, err := Parse(rule)
	if err != nil {
		c.log.Warn().Err(err).Str("rule", rule).Msg("rule failed to compile, treating as never matching")
		if c.onFail != nil {
			c.onFail(rule, err)
		}
		return Never
	}
	return func(ctx Context) (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error().Str("rule", rule).Str("panic", fmt.Sprint(r)).Msg("rule evaluation panicked")
				ok = false
			}
		}()
		return node.Eval(ctx).truthy()
	}
}

// Len reports how many distinct rule texts are cached.
func (c *Compiler) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Evaluate compiles rule (using the cache) and applies it to ctx.
func (c *Compiler) Evaluate(rule string, ctx Context) bool {
	return c.Compile(rule)(ctx)
}

// EvaluateOnce parses rule and applies it to ctx without touching any
// compiler cache. Unlike Evaluate it reports why a rule did not run: the
// parse error, or the panic raised while evaluating.
func EvaluateOnce(rule string, ctx Context) (result bool, err error) {
	node, err := Parse(rule)
	if err != nil {
		return false, err
	}
	defer func() {
		if r := recover(); r != nil {
			result, err = false, fmt.Errorf("rule evaluation panicked: %v", r)
		}
	}()
	return node.Eval(ctx).truthy(), nil
}

var defaultCompiler = NewCompiler()

// Compile compiles rule with a shared, silent compiler.
func Compile(rule string) Predicate { return defaultCompiler.Compile(rule) }

// Evaluate evaluates rule against ctx with a shared, silent compiler.
// It never panics; anything that goes wrong yields false.
func Evaluate(rule string, ctx Context) bool { return defaultCompiler.Evaluate(rule, ctx) }
