package config

import (
	"errors"
	"fmt"

	"github.com/krmcbride/runlint/pkg/detector"
	"github.com/krmcbride/runlint/pkg/resolve"
)

// ErrUnexpectedMatcher is returned for a matcher on a step kind that takes
// flag names only.
var ErrUnexpectedMatcher = errors.New("step kind takes no matcher")

// Step kinds.
const (
	KindWith              = "with"
	KindNot               = "not"
	KindOptional          = "optional"
	KindOptionalFlag      = "optional-flag"
	KindRepeat            = "repeat"
	KindRepeatExcept      = "repeat-except"
	KindAnyFlag           = "any-flag"
	KindAnyFlagExcept     = "any-flag-except"
	KindAnyFlagFollowedBy = "any-flag-followed-by"
	KindFlagValue         = "flag-value"
	KindAnyOptionExcept   = "any-option-except"
	KindUnorderedOptions  = "unordered-options"
	KindUnresolved        = "unresolved"
	KindContains          = "contains"
	KindWithoutEnv        = "without-env"
)

// apply adds the step to b and returns the builder's construction error.
func (sc StepConfig) apply(b *detector.Builder) error {
	pred, err := sc.predicate()
	if err != nil {
		return err
	}

	switch sc.Kind {
	case KindWith, KindNot, KindOptional, KindRepeatExcept, KindContains:
		if pred == nil {
			return ErrMissingMatcher
		}
	case KindOptionalFlag, KindAnyFlag, KindAnyFlagExcept, KindAnyFlagFollowedBy,
		KindAnyOptionExcept, KindUnorderedOptions, KindUnresolved:
		if pred != nil {
			return ErrUnexpectedMatcher
		}
	}

	switch sc.Kind {
	case KindWith:
		if sc.IncludeUnresolved {
			b.WithIncludeUnresolved(pred)
		} else {
			b.With(pred)
		}
	case KindNot:
		b.NotWith(pred)
	case KindOptional:
		b.WithOptional(pred)
	case KindOptionalFlag:
		b.WithOptionalFlag(sc.Flags...)
	case KindRepeat:
		if sc.IncludeUnresolved {
			b.WithAnyIncludingUnresolvedRepeating(orAny(pred))
		} else {
			b.WithOptionalRepeating(orAny(pred))
		}
	case KindRepeatExcept:
		b.WithOptionalRepeatingExcept(pred)
	case KindAnyFlag:
		b.WithAnyFlag()
	case KindAnyFlagExcept:
		b.WithAnyFlagExcept(sc.Flags...)
	case KindAnyFlagFollowedBy:
		b.WithAnyFlagFollowedBy(sc.Flags...)
	case KindFlagValue:
		b.WithFlagValue(sc.Flags, orAny(pred))
	case KindAnyOptionExcept:
		b.WithAnyOptionExcluding(sc.Flags...)
	case KindUnorderedOptions:
		options, err := sc.options()
		if err != nil {
			return err
		}
		b.WithUnorderedOptions(options...)
	case KindUnresolved:
		b.WithArgument(resolve.ResolvedArgument.IsUnresolved)
	case KindContains:
		b.Contains(pred)
	case KindWithoutEnv:
		if sc.Env == "" {
			return ErrMissingEnv
		}
		b.WithoutEnv(sc.Env, orAny(pred))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, sc.Kind)
	}
	return b.Err()
}

func (sc StepConfig) options() ([]detector.Option, error) {
	options := make([]detector.Option, 0, len(sc.Options))
	for i, oc := range sc.Options {
		value, err := oc.predicate()
		if err != nil {
			return nil, fmt.Errorf("option %d: %w", i+1, err)
		}
		options = append(options, detector.Option{Names: oc.Flags, Value: value, Optional: oc.Optional})
	}
	return options, nil
}

// predicate builds the matcher, or nil when none is set.
func (m Matcher) predicate() (detector.Predicate, error) {
	var preds []detector.Predicate
	if m.Value != "" {
		preds = append(preds, detector.Equals(m.Value))
	}
	if m.Values != nil {
		if len(m.Values) == 0 {
			return nil, detector.ErrEmptySet
		}
		preds = append(preds, detector.OneOf(m.Values...))
	}
	if m.Prefix != "" {
		preds = append(preds, detector.Prefix(m.Prefix))
	}
	if m.Glob != "" {
		p, err := detector.Glob(m.Glob)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if m.Regex != "" {
		p, err := detector.Regexp(m.Regex)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if m.Command != "" {
		preds = append(preds, detector.IsCommand(m.Command))
	}
	if m.Is != "" {
		p, err := builtin(m.Is)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}

	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	default:
		return nil, ErrConflictingMatchers
	}
}

func builtin(name string) (detector.Predicate, error) {
	switch name {
	case "any":
		return detector.Any(), nil
	case "flag":
		return detector.IsFlag(), nil
	case "shell":
		return detector.IsShellInterpreter(), nil
	case "eval":
		return detector.IsEvalCommand(), nil
	}
	return nil, fmt.Errorf("%w: %q (must be any, flag, shell, or eval)", ErrUnknownMatcher, name)
}

func orAny(p detector.Predicate) detector.Predicate {
	if p == nil {
		return detector.Any()
	}
	return p
}
