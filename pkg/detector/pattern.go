// Package detector compiles declarative command patterns and searches
// resolved argument lists for every non-overlapping match.
package detector

import (
	"errors"
	"slices"

	"github.com/krmcbride/runlint/pkg/resolve"
)

// Construction errors returned by Build. They signal a badly written
// pattern, never a property of the analysed input.
var (
	ErrEmptyPattern      = errors.New("pattern has no steps")
	ErrEmptyFlagSet      = errors.New("flag step needs at least one flag name")
	ErrEmptySet          = errors.New("set step needs at least one value")
	ErrNoPositionalStep  = errors.New("pattern has no step that consumes arguments")
	ErrStepAfterContains = errors.New("positional step added after Contains")
	ErrNilPredicate      = errors.New("nil predicate")
)

type stepKind int

const (
	stepFixed stepKind = iota
	stepNot
	stepOptional
	stepOptionalRepeating
	stepOptionalRepeatingExcept
	stepFlagFollowedBy
	stepUnordered
	stepContains
	stepEnvGuard
)

func (k stepKind) positional() bool {
	return k != stepContains && k != stepEnvGuard
}

type step struct {
	kind stepKind
	pred Predicate
	// flag names of a stepFlagFollowedBy step
	names []string
	// variable consulted by a stepEnvGuard step
	env string
	// members of a stepUnordered group
	options []Option
	// argument-level test, overriding pred
	argPred           ArgumentPredicate
	includeUnresolved bool
}

// ArgumentPredicate tests a whole resolved argument. Unlike a Predicate it
// also sees unresolved arguments and their source.
type ArgumentPredicate func(resolve.ResolvedArgument) bool

// Option is one member of an unordered option group: a flag spelled as any
// of Names, with or without a value.
type Option struct {
	Names []string
	// Value matches the value written as `--name value` or `--name=value`.
	// A nil Value means the flag takes none.
	Value Predicate
	// Optional options may be missing from the command.
	Optional bool
}

// Pattern is an immutable, compiled step sequence. It is safe to share
// between goroutines.
type Pattern struct {
	positional []step
	contains   []step
	guards     []step
}

// Builder accumulates steps in call order. The first construction error is
// kept and returned by Build.
type Builder struct {
	steps       []step
	err         error
	hasContains bool
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{}
}

func (b *Builder) add(s step) *Builder {
	if b.err != nil {
		return b
	}
	if s.pred == nil {
		b.err = ErrNilPredicate
		return b
	}
	if s.kind.positional() && b.hasContains {
		b.err = ErrStepAfterContains
		return b
	}
	if s.kind == stepContains {
		b.hasContains = true
	}
	b.steps = append(b.steps, s)
	return b
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// With requires the argument at the cursor to satisfy p.
func (b *Builder) With(p Predicate) *Builder {
	return b.add(step{kind: stepFixed, pred: p})
}

// WithString requires the argument at the cursor to equal s.
func (b *Builder) WithString(s string) *Builder {
	return b.With(Equals(s))
}

// WithSet requires the argument at the cursor to be one of values.
func (b *Builder) WithSet(values ...string) *Builder {
	if len(values) == 0 {
		return b.fail(ErrEmptySet)
	}
	return b.With(OneOf(values...))
}

// NotWith asserts that the argument at the cursor does not satisfy p,
// without consuming it. An unresolved argument fails the assertion.
func (b *Builder) NotWith(p Predicate) *Builder {
	return b.add(step{kind: stepNot, pred: p})
}

// WithOptional consumes the argument at the cursor if it satisfies p.
func (b *Builder) WithOptional(p Predicate) *Builder {
	return b.add(step{kind: stepOptional, pred: p})
}

// WithOptionalFlag consumes the argument at the cursor if it is one of the
// given flags.
func (b *Builder) WithOptionalFlag(names ...string) *Builder {
	if len(names) == 0 {
		return b.fail(ErrEmptyFlagSet)
	}
	return b.WithOptional(OneOf(names...))
}

// WithOptionalRepeating consumes arguments while they satisfy p. Repetition
// also stops at an argument the next positional step would accept.
func (b *Builder) WithOptionalRepeating(p Predicate) *Builder {
	return b.add(step{kind: stepOptionalRepeating, pred: p})
}

// WithAnyFlag consumes any run of flags.
func (b *Builder) WithAnyFlag() *Builder {
	return b.WithOptionalRepeating(IsFlag())
}

// WithAnyIncludingUnresolvedRepeating consumes arguments while they satisfy
// p, treating unresolved arguments as accepted.
func (b *Builder) WithAnyIncludingUnresolvedRepeating(p Predicate) *Builder {
	return b.add(step{kind: stepOptionalRepeating, pred: p, includeUnresolved: true})
}

// WithOptionalRepeatingExcept consumes arguments while they do not satisfy p.
func (b *Builder) WithOptionalRepeatingExcept(p Predicate) *Builder {
	return b.add(step{kind: stepOptionalRepeatingExcept, pred: p})
}

// WithOptionalRepeatingExceptSet consumes arguments until one of values.
func (b *Builder) WithOptionalRepeatingExceptSet(values ...string) *Builder {
	if len(values) == 0 {
		return b.fail(ErrEmptySet)
	}
	return b.WithOptionalRepeatingExcept(OneOf(values...))
}

// WithAnyFlagExcept consumes flags other than the given ones and then
// asserts that none of the given flags follows.
func (b *Builder) WithAnyFlagExcept(flags ...string) *Builder {
	if len(flags) == 0 {
		return b.fail(ErrEmptyFlagSet)
	}
	excluded := OneOf(flags...)
	return b.WithOptionalRepeating(And(IsFlag(), Not(excluded))).NotWith(excluded)
}

// WithAnyFlagFollowedBy consumes flags other than the given ones and then
// requires one of the given flags.
func (b *Builder) WithAnyFlagFollowedBy(flags ...string) *Builder {
	if len(flags) == 0 {
		return b.fail(ErrEmptyFlagSet)
	}
	wanted := OneOf(flags...)
	return b.WithOptionalRepeating(And(IsFlag(), Not(wanted))).With(wanted)
}

// WithFlagValue requires one of the named flags with a value satisfying
// value, written either as `--name=value` or as `--name value`.
func (b *Builder) WithFlagValue(names []string, value Predicate) *Builder {
	if len(names) == 0 {
		return b.fail(ErrEmptyFlagSet)
	}
	return b.add(step{kind: stepFlagFollowedBy, pred: value, names: slices.Clone(names)})
}

// WithUnorderedOptions requires every non-optional option in any order.
// Other arguments between them are skipped. The step stops once all
// options were seen, at an unresolved argument, or at an option flag that
// cannot be taken.
func (b *Builder) WithUnorderedOptions(options ...Option) *Builder {
	if len(options) == 0 {
		return b.fail(ErrEmptyFlagSet)
	}
	for _, o := range options {
		if len(o.Names) == 0 {
			return b.fail(ErrEmptyFlagSet)
		}
	}
	return b.add(step{kind: stepUnordered, pred: Any(), options: slices.Clone(options)})
}

// WithAnyOptionExcluding consumes flags other than the excluded ones,
// together with the values that follow them.
func (b *Builder) WithAnyOptionExcluding(flags ...string) *Builder {
	if len(flags) == 0 {
		return b.fail(ErrEmptyFlagSet)
	}
	excluded := OneOf(flags...)
	for _, f := range flags {
		excluded = Or(excluded, FlagWithValue(f, Any()))
	}
	return b.WithOptionalRepeating(Not(excluded))
}

// WithOptionAmongOthersExcluding requires one of the named flags with a
// value satisfying value, surrounded by any options except the excluded
// ones.
func (b *Builder) WithOptionAmongOthersExcluding(names []string, value Predicate, excluded ...string) *Builder {
	return b.WithAnyOptionExcluding(excluded...).
		WithFlagValue(names, value).
		WithAnyOptionExcluding(excluded...)
}

// WithArgument requires the argument at the cursor, resolved or not, to
// satisfy p.
func (b *Builder) WithArgument(p ArgumentPredicate) *Builder {
	if p == nil {
		return b.fail(ErrNilPredicate)
	}
	return b.add(step{kind: stepFixed, pred: Any(), argPred: p})
}

// WithIncludeUnresolved requires the argument at the cursor to satisfy p or
// to be unresolved. p sees the empty string for an unresolved argument.
func (b *Builder) WithIncludeUnresolved(p Predicate) *Builder {
	return b.add(step{kind: stepFixed, pred: p, includeUnresolved: true})
}

// Contains requires some argument of the matched window to satisfy p. Only
// Contains and WithoutEnv may follow a Contains step.
func (b *Builder) Contains(p Predicate) *Builder {
	return b.add(step{kind: stepContains, pred: p})
}

// WithoutEnv rejects every match while the environment variable name is set
// to a value satisfying p.
func (b *Builder) WithoutEnv(name string, p Predicate) *Builder {
	return b.add(step{kind: stepEnvGuard, pred: p, env: name})
}

// WithStepsFrom appends the steps of other, e.g. a shared command prefix.
func (b *Builder) WithStepsFrom(other *Builder) *Builder {
	if other.err != nil {
		return b.fail(other.err)
	}
	for _, s := range other.steps {
		b.add(s)
	}
	return b
}

// Err returns the first construction error recorded so far.
func (b *Builder) Err() error {
	return b.err
}

// Build validates the accumulated steps and compiles them.
func (b *Builder) Build() (*Pattern, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.steps) == 0 {
		return nil, ErrEmptyPattern
	}
	p := &Pattern{}
	for _, s := range b.steps {
		switch s.kind {
		case stepContains:
			p.contains = append(p.contains, s)
		case stepEnvGuard:
			p.guards = append(p.guards, s)
		default:
			p.positional = append(p.positional, s)
		}
	}
	if len(p.positional) == 0 {
		return nil, ErrNoPositionalStep
	}
	return p, nil
}

// MustBuild is like Build but panics on a construction error. It is meant
// for package-level patterns.
func (b *Builder) MustBuild() *Pattern {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}
