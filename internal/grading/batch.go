package grading

import (
	"errors"

	"github.com/ironsheep/omr-grader/internal/omr"
)

// Result error codes.
const (
	CodeImageUnreadable = "IMAGE_UNREADABLE"
	CodeNoAnswerKey     = "NO_ANSWER_KEY"
	CodeInternal        = "INTERNAL_ERROR"
)

// Item is one sheet of a batch.
type Item struct {
	// Filename is reported back with the result, typically the upload name.
	Filename string
	// Path is where the sheet image is read from.
	Path string
	// Prepare, when set, is called just before the item is graded and
	// supplies the path to read instead of Path. The returned release func,
	// if non-nil, runs once the item is done whatever the outcome. Uploads
	// use it to spool to a temporary file that never outlives its item.
	Prepare func() (path string, release func(), err error)
}

// Result is the outcome of grading one sheet. Exactly one of Summary or
// Error is set.
type Result struct {
	Filename string `json:"filename"`
	*Summary
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// OK reports whether the sheet was graded.
func (r Result) OK() bool {
	return r.Summary != nil
}

// GradeFiles grades items one after another. A failing item is reported in
// its own Result and never stops the rest of the batch. Each item's release
// func runs before the next item is prepared.
func GradeFiles(b ResponseBuilder, key *AnswerKey, items []Item) []Result {
	results := make([]Result, 0, len(items))
	for _, item := range items {
		results = append(results, gradeOne(b, key, item))
	}
	return results
}

func gradeOne(b ResponseBuilder, key *AnswerKey, item Item) Result {
	if key == nil {
		return failure(item.Filename, ErrNoAnswerKey)
	}

	path := item.Path
	if item.Prepare != nil {
		p, release, err := item.Prepare()
		if release != nil {
			defer release()
		}
		if err != nil {
			return failure(item.Filename, err)
		}
		path = p
	}

	responses, err := b.BuildResponseMap(path)
	if err != nil {
		return failure(item.Filename, err)
	}

	summary := key.Score(responses)
	return Result{Filename: item.Filename, Summary: &summary}
}

func failure(filename string, err error) Result {
	return Result{Filename: filename, Error: err.Error(), Code: ErrorCode(err)}
}

// ErrorCode maps a grading error to its result code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, omr.ErrImageUnreadable):
		return CodeImageUnreadable
	case errors.Is(err, ErrNoAnswerKey):
		return CodeNoAnswerKey
	default:
		return CodeInternal
	}
}
