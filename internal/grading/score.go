package grading

import "github.com/ironsheep/omr-grader/internal/omr"

// Summary is the score of one sheet.
type Summary struct {
	Total      int `json:"total"`
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Unanswered int `json:"unanswered"`
	// Ambiguous counts multi-filled answers; they are included in Incorrect.
	Ambiguous  int     `json:"ambiguous"`
	Percentage float64 `json:"percentage"`
}

// Answered returns the number of questions that were not left blank.
func (s Summary) Answered() int {
	return s.Total - s.Unanswered
}

// Score compares candidate against key over the questions 1..len(key).
//
// Percentage is Correct / (Total - Unanswered) * 100, or 0 when no question
// was answered.
func Score(candidate, key omr.ResponseMap) Summary {
	s := Summary{Total: len(key)}

	for q := 1; q <= s.Total; q++ {
		answer, ok := candidate[q]
		switch {
		case !ok || answer == "" || answer == omr.Unanswered:
			s.Unanswered++
		case answer == omr.Ambiguous:
			s.Incorrect++
			s.Ambiguous++
		case answer == key[q]:
			s.Correct++
		default:
			s.Incorrect++
		}
	}

	if answered := s.Answered(); answered > 0 {
		s.Percentage = float64(s.Correct) / float64(answered) * 100
	}
	return s
}
