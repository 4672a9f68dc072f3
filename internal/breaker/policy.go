package breaker

import "errors"

// ExcludeRule classifies a raised error as excluded (non-failure) or not.
// Rules are evaluated in order by Policy.IsExcluded; the first rule whose
// type matches the error decides, regardless of whether its predicate
// returns true or false — a type match that fails its predicate does not
// fall through to later rules with the same or a wider type (it simply
// counts as a failure), matching spec §4.2: "evaluation stops at the
// first type match, regardless of predicate result."
type ExcludeRule interface {
	// match reports (matched, excluded). matched is true iff err is an
	// instance of the rule's target type; excluded is only meaningful
	// when matched is true.
	match(err error) (matched, excluded bool)
}

// byTypeRule excludes any error that is an instance of T (via
// errors.As), regardless of value. It is the Go analogue of spec's
// ByType(exception_type).
type byTypeRule[T error] struct{}

func (byTypeRule[T]) match(err error) (bool, bool) {
	var target T
	if errors.As(err, &target) {
		return true, true
	}
	return false, false
}

// ByType builds an exclusion rule that treats any error matching type T
// (including wrapped errors unwrapped via errors.As, which plays the
// role subclassing plays in spec §8's "excluded exception types include
// subclasses") as a non-failure.
func ByType[T error]() ExcludeRule {
	return byTypeRule[T]{}
}

// byTypeAndPredicateRule excludes an error of type T only when pred
// returns true for it. A type match whose predicate returns false still
// stops rule evaluation (the error counts as a failure); it does not
// defer to subsequent rules, matching spec §4.2.
type byTypeAndPredicateRule[T error] struct {
	pred func(T) bool
}

func (r byTypeAndPredicateRule[T]) match(err error) (bool, bool) {
	var target T
	if !errors.As(err, &target) {
		return false, false
	}
	return true, r.pred(target)
}

// ByTypeAndPredicate builds an exclusion rule that treats an error of
// type T as a non-failure only when pred returns true for it. pred
// receives the concrete, unwrapped error instance.
func ByTypeAndPredicate[T error](pred func(T) bool) ExcludeRule {
	return byTypeAndPredicateRule[T]{pred: pred}
}

// Policy is an ordered sequence of exclusion rules, evaluated
// first-match-wins.
type Policy []ExcludeRule

// IsExcluded reports whether err should be treated as a non-failure
// under this policy. A nil or empty policy never excludes anything.
func (p Policy) IsExcluded(err error) bool {
	for _, rule := range p {
		if matched, excluded := rule.match(err); matched {
			return excluded
		}
	}
	return false
}

// compose concatenates a per-call policy with the factory's global
// policy, per spec §4.2: "A composed policy is the concatenation of the
// per-call exclude list followed by the factory's global exclude list."
func compose(perCall, global Policy) Policy {
	if len(perCall) == 0 {
		return global
	}
	if len(global) == 0 {
		return perCall
	}
	out := make(Policy, 0, len(perCall)+len(global))
	out = append(out, perCall...)
	out = append(out, global...)
	return out
}
