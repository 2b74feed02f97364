// Package grading scores response maps against an answer key.
//
// The answer key is an immutable value. A KeyStore holds the key currently
// in service and replaces it atomically: a reload builds the complete new key
// before anyone can see it, so concurrent graders never observe a partial key.
//
// Scoring rules, per question 1..len(key):
//   - missing, empty or U: unanswered
//   - I: incorrect (also counted as ambiguous)
//   - same symbol as the key: correct
//   - anything else: incorrect
//
// Candidate questions beyond the key are ignored.
package grading
