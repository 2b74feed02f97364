package omr

import (
	"errors"

	"github.com/ironsheep/omr-grader/internal/imaging"
)

var (
	// ErrImageUnreadable means the sheet could not be opened or decoded.
	ErrImageUnreadable = imaging.ErrUnreadable

	// ErrKeyCollision means two rows were assigned the same question number.
	ErrKeyCollision = errors.New("question number collision")
)
