package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ironsheep/omr-grader/internal/omr"
)

type failingBuilder struct{ err error }

func (b failingBuilder) BuildResponseMap(string) (omr.ResponseMap, error) {
	return nil, b.err
}

func TestGradeFiles(t *testing.T) {
	b := stubBuilder{
		"good.png":  {1: "A", 2: "C", 3: "U"},
		"blank.png": {},
	}
	key := NewAnswerKey(omr.ResponseMap{1: "A", 2: "B", 3: "U"}, "key.png")

	var events []string
	item := func(name string) Item {
		return Item{
			Filename: name,
			Prepare: func() (string, func(), error) {
				events = append(events, "prepare "+name)
				return name, func() { events = append(events, "release "+name) }, nil
			},
		}
	}

	results := GradeFiles(b, key, []Item{item("good.png"), item("corrupt.png"), item("blank.png")})

	if len(results) != 3 {
		t.Fatalf("GradeFiles: got %d results, want 3", len(results))
	}

	good := results[0]
	if !good.OK() || good.Filename != "good.png" {
		t.Fatalf("first result should be graded: %+v", good)
	}
	if want := (Summary{Total: 3, Correct: 1, Incorrect: 1, Unanswered: 1, Percentage: 50}); *good.Summary != want {
		t.Errorf("good.png summary: got %+v, want %+v", *good.Summary, want)
	}

	bad := results[1]
	if bad.OK() || bad.Code != CodeImageUnreadable || bad.Error == "" {
		t.Errorf("corrupt.png should fail with IMAGE_UNREADABLE, got %+v", bad)
	}

	blank := results[2]
	if !blank.OK() || blank.Unanswered != 3 || blank.Percentage != 0 {
		t.Errorf("blank.png: got %+v, want all unanswered at 0%%", blank)
	}

	want := "prepare good.png,release good.png,prepare corrupt.png,release corrupt.png,prepare blank.png,release blank.png"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("prepare/release order:\n got  %s\n want %s", got, want)
	}
}

func TestGradeFiles_NoKey(t *testing.T) {
	prepared := 0
	prepare := func() (string, func(), error) {
		prepared++
		return "a.png", nil, nil
	}
	results := GradeFiles(stubBuilder{}, nil, []Item{{Filename: "a.png", Prepare: prepare}})

	if results[0].Code != CodeNoAnswerKey {
		t.Errorf("expected %s, got %+v", CodeNoAnswerKey, results[0])
	}
	if prepared != 0 {
		t.Errorf("nothing should be prepared without a key, prepared %d", prepared)
	}
}

func TestGradeFiles_PrepareFailure(t *testing.T) {
	released := false
	items := []Item{
		{Filename: "a.png", Prepare: func() (string, func(), error) {
			return "", func() { released = true }, errors.New("upload truncated")
		}},
		{Filename: "b.png", Path: "b.png"},
	}
	b := stubBuilder{"b.png": {1: "A"}}

	results := GradeFiles(b, NewAnswerKey(omr.ResponseMap{1: "A"}, "k"), items)

	if results[0].OK() || results[0].Code != CodeInternal {
		t.Errorf("failed prepare should be an internal error, got %+v", results[0])
	}
	if !released {
		t.Error("release should run when prepare fails")
	}
	if !results[1].OK() || results[1].Correct != 1 {
		t.Errorf("second item should still be graded, got %+v", results[1])
	}
}

func TestGradeFiles_Empty(t *testing.T) {
	results := GradeFiles(stubBuilder{}, NewAnswerKey(omr.ResponseMap{}, "k"), nil)
	if results == nil || len(results) != 0 {
		t.Errorf("empty batch: got %v, want empty non-nil slice", results)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("sheet.png: %w", omr.ErrImageUnreadable), CodeImageUnreadable},
		{ErrNoAnswerKey, CodeNoAnswerKey},
		{fmt.Errorf("merge: %w", omr.ErrKeyCollision), CodeInternal},
		{errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}

	r := GradeFiles(failingBuilder{errors.New("boom")}, NewAnswerKey(omr.ResponseMap{1: "A"}, "k"), []Item{{Filename: "x"}})
	if r[0].Code != CodeInternal {
		t.Errorf("unexpected code %s", r[0].Code)
	}
}

func TestResult_JSON(t *testing.T) {
	ok := Result{Filename: "a.png", Summary: &Summary{Total: 2, Correct: 1, Incorrect: 1, Percentage: 50}}
	data, err := json.Marshal(ok)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var flat map[string]interface{}
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if flat["filename"] != "a.png" || flat["total"] != float64(2) || flat["percentage"] != float64(50) {
		t.Errorf("summary fields should be flattened beside filename: %s", data)
	}
	if _, has := flat["error"]; has {
		t.Errorf("successful result should not carry an error: %s", data)
	}

	failed := Result{Filename: "b.png", Error: "image unreadable", Code: CodeImageUnreadable}
	data, _ = json.Marshal(failed)
	if strings.Contains(string(data), "total") {
		t.Errorf("failed result should not carry summary fields: %s", data)
	}
}
