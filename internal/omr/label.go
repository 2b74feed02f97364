package omr

import (
	"image"

	"github.com/ironsheep/omr-grader/internal/detection"
)

// Bubble is one classified circle of a row.
type Bubble struct {
	detection.Circle
	// Label is the option letter, empty for circles past OptionsPerRow.
	Label    Symbol  `json:"label,omitempty"`
	Coverage float64 `json:"coverage"`
	Filled   bool    `json:"filled"`
}

// RowResult is the resolved answer of one row.
type RowResult struct {
	Index   int      `json:"index"`
	Symbol  Symbol   `json:"symbol"`
	Bubbles []Bubble `json:"bubbles"`
}

// LabelRow classifies every bubble of row and resolves the row's symbol.
//
// The first p.OptionsPerRow circles are labelled A, B, ... by position. All
// labelled bubbles are classified before the symbol is chosen:
//   - none filled: Unanswered
//   - one filled: its label
//   - several filled: decided by p.MultiFill
//
// Circles beyond OptionsPerRow are reported without a label and never
// influence the symbol.
func LabelRow(row Row, mask *image.Gray, p Params) RowResult {
	res := RowResult{
		Index:   row.Index,
		Symbol:  Unanswered,
		Bubbles: make([]Bubble, 0, len(row.Circles)),
	}

	var filled []Symbol
	for i, c := range row.Circles {
		b := Bubble{
			Circle:   c,
			Coverage: Coverage(c, mask),
			Filled:   IsFilled(c, mask, p.FillFraction),
		}
		if i < p.OptionsPerRow {
			b.Label = OptionLabel(i)
			if b.Filled {
				filled = append(filled, b.Label)
			}
		}
		res.Bubbles = append(res.Bubbles, b)
	}

	switch {
	case len(filled) == 1:
		res.Symbol = filled[0]
	case len(filled) > 1:
		switch p.MultiFill {
		case MultiFillFirst:
			res.Symbol = filled[0]
		case MultiFillLast:
			res.Symbol = filled[len(filled)-1]
		default:
			res.Symbol = Ambiguous
		}
	}
	return res
}
