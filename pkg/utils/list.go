// Package utils holds the list handling behind the --rules flag of runlint.
package utils

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownID is returned by SelectByID for an id no item carries.
var ErrUnknownID = errors.New("unknown id")

// SplitList splits a comma-separated flag value into trimmed items. Empty
// items and repeats are dropped; the first occurrence keeps its place.
func SplitList(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		item := strings.TrimSpace(part)
		if item != "" && !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}

// SelectByID keeps the items whose id is listed in ids, in item order. No
// ids keeps every item. Every id must name at least one item.
func SelectByID[T any](items []T, ids []string, id func(T) string) ([]T, error) {
	if len(ids) == 0 {
		return items, nil
	}
	for _, want := range ids {
		if !slices.ContainsFunc(items, func(item T) bool { return id(item) == want }) {
			return nil, fmt.Errorf("%w %q", ErrUnknownID, want)
		}
	}

	selected := make([]T, 0, len(ids))
	for _, item := range items {
		if slices.Contains(ids, id(item)) {
			selected = append(selected, item)
		}
	}
	return selected, nil
}
