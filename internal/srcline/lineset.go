package srcline

import (
	"sort"

	"golang.org/x/exp/slices"
)

// Set is the distinct set of source lines a matched function's
// instructions reference, in ascending order.
type Set struct {
	list []int
}

// Add records line as needed.
func (s *Set) Add(line int) {
	if len(s.list) == 0 {
		s.list = append(s.list, line)
		return
	}
	at := sort.SearchInts(s.list, line)
	if at >= len(s.list) {
		s.list = append(s.list, line)
	} else if s.list[at] != line {
		s.list = slices.Insert(s.list, at, line)
	}
}

// Lines returns the accumulated set in ascending order.
func (s *Set) Lines() []int {
	return s.list
}

// Ranges collapses the set into contiguous ranges, expanding each
// line by context lines of before/after for rendering.
func (s *Set) Ranges(context int) []Range {
	if len(s.list) == 0 {
		return nil
	}

	var all []Range

	current := Range{From: s.list[0] - context, To: s.list[0] + context + 1}
	if current.From < 1 {
		current.From = 1
	}
	for _, line := range s.list {
		if line-context <= current.To {
			current.To = line + context + 1
		} else {
			all = append(all, current)
			current = Range{From: line - context, To: line + context + 1}
		}
	}
	all = append(all, current)

	return all
}

// RangesZero collapses the set into contiguous ranges without
// expanding by any surrounding context.
func (s *Set) RangesZero() []Range {
	if len(s.list) == 0 {
		return nil
	}

	var all []Range

	current := Range{From: s.list[0], To: s.list[0] + 1}
	for _, line := range s.list {
		if line <= current.To {
			current.To = line + 1
		} else {
			all = append(all, current)
			current = Range{From: line, To: line + 1}
		}
	}
	all = append(all, current)

	return all
}
