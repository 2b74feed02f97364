package omr

import (
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/omr-grader/internal/detection"
	"github.com/ironsheep/omr-grader/internal/imaging"
	"github.com/ironsheep/omr-grader/internal/logger"
)

// QuestionRow is a labelled row placed on the merged question numbering.
type QuestionRow struct {
	Question int `json:"question"`
	Column   int `json:"column"` // 1-based
	RowResult
}

// Bounds returns the box enclosing the row's bubbles, grown by margin pixels
// on every side. A row without bubbles has an empty box.
func (q QuestionRow) Bounds(margin int) image.Rectangle {
	var r image.Rectangle
	for _, b := range q.Bubbles {
		r = r.Union(image.Rect(b.X-b.R, b.Y-b.R, b.X+b.R+1, b.Y+b.R+1))
	}
	if r.Empty() {
		return r
	}
	return r.Inset(-margin)
}

// Analysis is the full outcome of one pipeline run.
type Analysis struct {
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	Source    image.Image        `json:"-"`
	Mask      *image.Gray        `json:"-"`
	Circles   []detection.Circle `json:"circles"`
	Rows      []QuestionRow      `json:"rows"`
	Responses ResponseMap        `json:"responses"`

	// FillFraction is the coverage a bubble needed to count as filled.
	FillFraction float64 `json:"-"`
}

// MarkedRows converts the analysis into overlay rows.
func (a *Analysis) MarkedRows() []imaging.MarkedRow {
	out := make([]imaging.MarkedRow, 0, len(a.Rows))
	for _, row := range a.Rows {
		marks := make([]imaging.Mark, 0, len(row.Bubbles))
		for _, b := range row.Bubbles {
			marks = append(marks, imaging.Mark{
				X:      b.X,
				Y:      b.Y,
				R:      b.R,
				Filled: b.Filled,
				Level:  a.level(b.Coverage),
				Label:  string(b.Label),
			})
		}
		out = append(out, imaging.MarkedRow{Number: row.Question, Marks: marks})
	}
	return out
}

func (a *Analysis) level(coverage float64) float64 {
	if a.FillFraction <= 0 {
		return 0
	}
	return coverage / a.FillFraction
}

// Row returns the row answering question.
func (a *Analysis) Row(question int) (QuestionRow, bool) {
	for _, row := range a.Rows {
		if row.Question == question {
			return row, true
		}
	}
	return QuestionRow{}, false
}

// Overlay draws the analysis on top of a copy of the source image.
func (a *Analysis) Overlay() *image.RGBA {
	return imaging.Overlay(a.Source, a.MarkedRows())
}

// Pipeline grades sheet images with a fixed set of Params.
type Pipeline struct {
	params   Params
	loader   imaging.Loader
	detector detection.Detector
	log      logger.Logger
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithLoader replaces the default file loader.
func WithLoader(l imaging.Loader) Option {
	return func(p *Pipeline) { p.loader = l }
}

// WithDetector replaces the detector selected by Params.Detect.Method.
func WithDetector(d detection.Detector) Option {
	return func(p *Pipeline) { p.detector = d }
}

// WithLogger sets the logger for per-stage debug output.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// NewPipeline validates params and builds a Pipeline.
func NewPipeline(params Params, opts ...Option) (*Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline params: %w", err)
	}

	p := &Pipeline{
		params: params,
		loader: imaging.LoaderFunc(imaging.Load),
		log:    logger.Nop{},
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.detector == nil {
		d, err := detection.New(params.Detect)
		if err != nil {
			return nil, err
		}
		p.detector = d
	}
	return p, nil
}

// Params returns the parameters the pipeline was built with.
func (p *Pipeline) Params() Params {
	return p.params
}

// BuildResponseMap runs the pipeline on the image at path and returns its
// responses. It fails with ErrImageUnreadable when the file cannot be opened
// or decoded. A sheet with no detectable bubbles yields an empty map.
func (p *Pipeline) BuildResponseMap(path string) (ResponseMap, error) {
	a, err := p.Analyze(path)
	if err != nil {
		return nil, err
	}
	return a.Responses, nil
}

// Analyze runs the pipeline on the image at path and returns every
// intermediate result.
func (p *Pipeline) Analyze(path string) (*Analysis, error) {
	img, err := p.loader.Load(path)
	if err != nil {
		if !errors.Is(err, ErrImageUnreadable) {
			err = fmt.Errorf("%w: %w", ErrImageUnreadable, err)
		}
		return nil, err
	}

	a, err := p.AnalyzeImage(img)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	p.log.Debug("pipeline", "sheet analysed", logger.Fields{
		"path":      path,
		"circles":   len(a.Circles),
		"questions": len(a.Responses),
	})
	return a, nil
}

// AnalyzeImage runs the pipeline on an already decoded image.
func (p *Pipeline) AnalyzeImage(img image.Image) (*Analysis, error) {
	mask := imaging.Binarize(img, p.params.Binarize)
	width, height := mask.Rect.Dx(), mask.Rect.Dy()

	circles := p.detector.Detect(mask)
	columns := SplitColumns(circles, width, p.params.Columns)

	a := &Analysis{
		Width:   width,
		Height:  height,
		Source:  img,
		Mask:    mask,
		Circles: circles,
		Rows:    make([]QuestionRow, 0),

		FillFraction: p.params.FillFraction,
	}

	symbols := make([][]Symbol, len(columns))
	offset := 0
	for k, col := range columns {
		rows := ClusterRows(col, p.params.RowTolerance)
		symbols[k] = make([]Symbol, 0, len(rows))
		for _, row := range rows {
			res := LabelRow(row, mask, p.params)
			symbols[k] = append(symbols[k], res.Symbol)
			a.Rows = append(a.Rows, QuestionRow{
				Question:  offset + res.Index,
				Column:    k + 1,
				RowResult: res,
			})
		}
		offset += len(rows)

		p.log.Debug("pipeline", "column clustered", logger.Fields{
			"column":  k + 1,
			"circles": len(col),
			"rows":    len(rows),
		})
	}

	responses, err := MergeColumns(symbols)
	if err != nil {
		return nil, err
	}
	a.Responses = responses
	return a, nil
}
