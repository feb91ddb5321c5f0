// Package keymap implements the modal key dispatcher: context-scoped
// bindings with fallback to a Global context, longest-exact-match-then-
// prefix resolution, and leading-digit count-prefix parsing. Grounded on
// spec.md §4.6 directly — no keymap source file survived
// original_source's distillation filter, but
// original_source/src/keymap/tests.rs (read via the teacher's go.mod
// test-library idiom, github.com/stretchr/testify) confirms the
// context+sequence lookup shape named in the spec.
package keymap

import "strconv"

// Context scopes a set of bindings. Global is the fallback searched when
// a context-specific lookup misses.
type Context string

const Global Context = "Global"

// Action is an opaque binding target; the editor's reducer interprets it.
type Action string

// Resolution classifies what a key buffer currently means.
type Resolution int

const (
	// None means the buffer matches nothing and can't become a match by
	// typing more keys — the dispatcher should reset.
	None Resolution = iota
	// Prefix means the buffer is the strict prefix of at least one
	// registered sequence — more keys may resolve it.
	Prefix
	// Exact means the buffer matches a registered sequence exactly.
	Exact
)

// Result is the outcome of a single lookup.
type Result struct {
	Kind   Resolution
	Action Action
}

// Dispatcher holds context-scoped key-sequence to action bindings.
type Dispatcher struct {
	bindings map[Context]map[string]Action
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{bindings: make(map[Context]map[string]Action)}
}

// Register binds sequence (a single key, or a multi-key sequence like
// "gg") to action within context.
func (d *Dispatcher) Register(ctx Context, sequence string, action Action) {
	m, ok := d.bindings[ctx]
	if !ok {
		m = make(map[string]Action)
		d.bindings[ctx] = m
	}
	m[sequence] = action
}

func (d *Dispatcher) exact(ctx Context, buf string) (Action, bool) {
	m, ok := d.bindings[ctx]
	if !ok {
		return "", false
	}
	a, ok := m[buf]
	return a, ok
}

func (d *Dispatcher) hasProperPrefixOf(ctx Context, buf string) bool {
	m, ok := d.bindings[ctx]
	if !ok {
		return false
	}
	for seq := range m {
		if len(seq) > len(buf) && seq[:len(buf)] == buf {
			return true
		}
	}
	return false
}

// Lookup resolves buf within ctx, falling back to Global per spec.md §4.6.
func (d *Dispatcher) Lookup(ctx Context, buf string) Result {
	if a, ok := d.exact(ctx, buf); ok {
		return Result{Kind: Exact, Action: a}
	}
	if ctx != Global {
		if a, ok := d.exact(Global, buf); ok {
			return Result{Kind: Exact, Action: a}
		}
	}
	if d.hasProperPrefixOf(ctx, buf) || (ctx != Global && d.hasProperPrefixOf(Global, buf)) {
		return Result{Kind: Prefix}
	}
	return Result{Kind: None}
}

func (d *Dispatcher) hasBinding(ctx Context, seq string) bool {
	if _, ok := d.exact(ctx, seq); ok {
		return true
	}
	if ctx != Global {
		if _, ok := d.exact(Global, seq); ok {
			return true
		}
	}
	return false
}

// Resolved is the combined result of count-prefix parsing and lookup.
type Resolved struct {
	Count     int
	HasCount  bool
	Remainder string
	Result    Result
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// Resolve parses an optional leading digit run as a repeat count, then
// looks up the remainder. A leading "0" is only consumed as a count if
// no binding exists for the literal key "0" in ctx or Global — otherwise
// "0" resolves as a key itself, per spec.md §4.6's ambiguity rule.
func (d *Dispatcher) Resolve(ctx Context, input string) Resolved {
	i := 0
	if len(input) > 0 && input[0] >= '1' && input[0] <= '9' {
		for i < len(input) && isDigit(input[i]) {
			i++
		}
	} else if len(input) > 0 && input[0] == '0' && !d.hasBinding(ctx, "0") {
		i = 1
		for i < len(input) && isDigit(input[i]) {
			i++
		}
	}

	countStr := input[:i]
	rest := input[i:]
	count, hasCount := 1, false
	if countStr != "" {
		if n, err := strconv.Atoi(countStr); err == nil && n > 0 {
			count, hasCount = n, true
		}
	}
	return Resolved{Count: count, HasCount: hasCount, Remainder: rest, Result: d.Lookup(ctx, rest)}
}
