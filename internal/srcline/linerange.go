// Package srcline tracks which source lines a function's instructions
// touch, and collapses them into the contiguous ranges LinkSourceFiles
// and LoadSourceFiles need: which lines to request from a loaded file,
// and which lines are close enough together to render as one block.
package srcline

// Range is an inclusive-exclusive span of source line numbers.
type Range struct{ From, To int }

// Contain reports whether either a or b falls inside any of ranges.
func Contain(ranges []Range, a, b int) bool {
	for _, r := range ranges {
		if (r.From <= a && a < r.To) || (r.From <= b && b < r.To) {
			return true
		}
	}
	return false
}
