package omr

import "sort"

// Symbol is the answer recorded for one question.
type Symbol string

// Recorded symbols. Option letters run A, B, C, ... up to the configured
// options per row.
const (
	Unanswered Symbol = "U" // no filled bubble in the row
	Ambiguous  Symbol = "I" // more than one filled bubble in the row
)

// maxOptions bounds options per row so letters stay clear of I and U.
const maxOptions = 8

// OptionLabel returns the letter for the option at 0-based position i.
func OptionLabel(i int) Symbol {
	return Symbol(rune('A' + i))
}

// IsOption reports whether s is an option letter (A-H).
func (s Symbol) IsOption() bool {
	return len(s) == 1 && s[0] >= 'A' && s[0] < 'A'+maxOptions
}

// ResponseMap maps 1-based question numbers to recorded symbols.
type ResponseMap map[int]Symbol

// Questions returns the question numbers in ascending order.
func (m ResponseMap) Questions() []int {
	qs := make([]int, 0, len(m))
	for q := range m {
		qs = append(qs, q)
	}
	sort.Ints(qs)
	return qs
}

// Clone returns an independent copy of m.
func (m ResponseMap) Clone() ResponseMap {
	out := make(ResponseMap, len(m))
	for q, s := range m {
		out[q] = s
	}
	return out
}
