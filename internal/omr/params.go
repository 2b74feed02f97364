package omr

import (
	"errors"
	"fmt"

	"github.com/ironsheep/omr-grader/internal/detection"
	"github.com/ironsheep/omr-grader/internal/imaging"
)

// MultiFill policies decide the symbol of a row with two or more filled
// bubbles.
const (
	MultiFillInvalid = "invalid" // record Ambiguous
	MultiFillFirst   = "first"   // record the leftmost filled option
	MultiFillLast    = "last"    // record the rightmost filled option
)

// Params holds every tuning constant of the pipeline.
type Params struct {
	Binarize imaging.BinarizeParams `json:"binarize" yaml:"binarize" envconfig:"BINARIZE"`
	Detect   detection.Params       `json:"detect" yaml:"detect" envconfig:"DETECT"`

	// Columns is the number of side-by-side answer columns on the form.
	Columns int `json:"columns" yaml:"columns" envconfig:"COLUMNS"`

	// RowTolerance is the vertical gap, in pixels, at which a new row starts.
	RowTolerance int `json:"row_tolerance" yaml:"row_tolerance" envconfig:"ROW_TOLERANCE"`

	// FillFraction is the share of a bubble's area that must be ink for the
	// bubble to count as filled.
	FillFraction float64 `json:"fill_fraction" yaml:"fill_fraction" envconfig:"FILL_FRACTION"`

	// OptionsPerRow is how many bubbles, left to right, are labelled A, B, ...
	// Bubbles beyond it are ignored.
	OptionsPerRow int `json:"options_per_row" yaml:"options_per_row" envconfig:"OPTIONS_PER_ROW"`

	// MultiFill is one of MultiFillInvalid, MultiFillFirst or MultiFillLast.
	MultiFill string `json:"multi_fill" yaml:"multi_fill" envconfig:"MULTI_FILL"`
}

// DefaultParams returns the parameters for a two-column, five-option form
// scanned at ~150 DPI.
func DefaultParams() Params {
	return Params{
		Binarize:      imaging.DefaultBinarizeParams(),
		Detect:        detection.DefaultParams(),
		Columns:       2,
		RowTolerance:  20,
		FillFraction:  0.5,
		OptionsPerRow: 5,
		MultiFill:     MultiFillInvalid,
	}
}

// Validate reports every invalid parameter in p as one joined error.
func (p Params) Validate() error {
	var errs []error

	if p.Binarize.BlurSigma < 0 {
		errs = append(errs, fmt.Errorf("binarize.blur_sigma must not be negative, got %g", p.Binarize.BlurSigma))
	}
	if err := p.Detect.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detect: %w", err))
	}
	if p.Columns < 1 {
		errs = append(errs, fmt.Errorf("columns must be at least 1, got %d", p.Columns))
	}
	if p.RowTolerance < 1 {
		errs = append(errs, fmt.Errorf("row_tolerance must be positive, got %d", p.RowTolerance))
	}
	if p.FillFraction <= 0 || p.FillFraction >= 1 {
		errs = append(errs, fmt.Errorf("fill_fraction must be in (0,1), got %g", p.FillFraction))
	}
	if p.OptionsPerRow < 1 || p.OptionsPerRow > maxOptions {
		errs = append(errs, fmt.Errorf("options_per_row must be in 1..%d, got %d", maxOptions, p.OptionsPerRow))
	}
	switch p.MultiFill {
	case MultiFillInvalid, MultiFillFirst, MultiFillLast:
	default:
		errs = append(errs, fmt.Errorf("multi_fill must be one of invalid, first, last; got %q", p.MultiFill))
	}

	return errors.Join(errs...)
}
