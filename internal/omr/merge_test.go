package omr

import (
	"reflect"
	"testing"
)

func TestMergeColumns(t *testing.T) {
	tests := []struct {
		name    string
		columns [][]Symbol
		want    ResponseMap
	}{
		{
			name:    "left three right two",
			columns: [][]Symbol{{"A", "B", "C"}, {"D", "E"}},
			want:    ResponseMap{1: "A", 2: "B", 3: "C", 4: "D", 5: "E"},
		},
		{
			name:    "empty left column",
			columns: [][]Symbol{{}, {"A", "U"}},
			want:    ResponseMap{1: "A", 2: "U"},
		},
		{
			name:    "three columns",
			columns: [][]Symbol{{"A"}, {"B", "I"}, {"C"}},
			want:    ResponseMap{1: "A", 2: "B", 3: "I", 4: "C"},
		},
		{
			name:    "nothing detected",
			columns: [][]Symbol{{}, {}},
			want:    ResponseMap{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MergeColumns(tt.columns)
			if err != nil {
				t.Fatalf("MergeColumns failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MergeColumns: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeColumns_RightRowsRebased(t *testing.T) {
	got, err := MergeColumns([][]Symbol{{"A", "A", "A"}, {"B", "C"}})
	if err != nil {
		t.Fatalf("MergeColumns failed: %v", err)
	}
	if got[4] != "B" || got[5] != "C" {
		t.Errorf("right row 1 -> 4 and row 2 -> 5 expected, got %v", got)
	}
	if !reflect.DeepEqual(got.Questions(), []int{1, 2, 3, 4, 5}) {
		t.Errorf("Questions: got %v, want [1 2 3 4 5]", got.Questions())
	}
}

func TestResponseMap_Clone(t *testing.T) {
	m := ResponseMap{1: "A"}
	c := m.Clone()
	c[1] = "B"
	if m[1] != "A" {
		t.Error("Clone shares storage with the original")
	}
}
