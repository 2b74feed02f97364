package grading

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ironsheep/omr-grader/internal/omr"
)

// ErrNoAnswerKey is returned when grading is requested before a key is loaded.
var ErrNoAnswerKey = errors.New("no answer key loaded")

// ResponseBuilder turns a sheet image into responses. *omr.Pipeline
// implements it.
type ResponseBuilder interface {
	BuildResponseMap(path string) (omr.ResponseMap, error)
}

// AnswerKey is the reference response map sheets are graded against.
// It is never modified after construction.
type AnswerKey struct {
	responses omr.ResponseMap
	source    string
	builtAt   time.Time
}

// NewAnswerKey wraps a copy of responses read from source.
func NewAnswerKey(responses omr.ResponseMap, source string) *AnswerKey {
	return &AnswerKey{
		responses: responses.Clone(),
		source:    source,
		builtAt:   time.Now(),
	}
}

// LoadAnswerKey builds a key by running the sheet pipeline on the key image.
func LoadAnswerKey(b ResponseBuilder, path string) (*AnswerKey, error) {
	responses, err := b.BuildResponseMap(path)
	if err != nil {
		return nil, fmt.Errorf("failed to build answer key from %s: %w", path, err)
	}
	return NewAnswerKey(responses, path), nil
}

// Len returns the number of questions on the key.
func (k *AnswerKey) Len() int { return len(k.responses) }

// Source returns the path the key was built from.
func (k *AnswerKey) Source() string { return k.source }

// BuiltAt returns when the key was built.
func (k *AnswerKey) BuiltAt() time.Time { return k.builtAt }

// Answer returns the expected symbol for question q.
func (k *AnswerKey) Answer(q int) (omr.Symbol, bool) {
	s, ok := k.responses[q]
	return s, ok
}

// Responses returns a copy of the key's response map.
func (k *AnswerKey) Responses() omr.ResponseMap {
	return k.responses.Clone()
}

// Score grades candidate against the key.
func (k *AnswerKey) Score(candidate omr.ResponseMap) Summary {
	return Score(candidate, k.responses)
}

// KeyInfo is the serialisable description of an answer key.
type KeyInfo struct {
	Source    string          `json:"source"`
	BuiltAt   time.Time       `json:"built_at"`
	Questions int             `json:"questions"`
	Answers   omr.ResponseMap `json:"answers"`
}

// Info describes the key for APIs and logs.
func (k *AnswerKey) Info() KeyInfo {
	return KeyInfo{
		Source:    k.source,
		BuiltAt:   k.builtAt,
		Questions: len(k.responses),
		Answers:   k.Responses(),
	}
}

// KeyStore holds the answer key in service. It is safe for concurrent use.
type KeyStore struct {
	current atomic.Pointer[AnswerKey]
}

// NewKeyStore returns a store serving key, which may be nil.
func NewKeyStore(key *AnswerKey) *KeyStore {
	s := &KeyStore{}
	if key != nil {
		s.current.Store(key)
	}
	return s
}

// Current returns the key in service or ErrNoAnswerKey.
func (s *KeyStore) Current() (*AnswerKey, error) {
	k := s.current.Load()
	if k == nil {
		return nil, ErrNoAnswerKey
	}
	return k, nil
}

// Swap puts key in service and returns the previous one, if any.
func (s *KeyStore) Swap(key *AnswerKey) *AnswerKey {
	return s.current.Swap(key)
}

// Reload builds a new key from the image at path and swaps it in. On failure
// the key in service is left untouched.
func (s *KeyStore) Reload(b ResponseBuilder, path string) (*AnswerKey, error) {
	key, err := LoadAnswerKey(b, path)
	if err != nil {
		return nil, err
	}
	s.Swap(key)
	return key, nil
}
