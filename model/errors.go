package model

import "errors"

var (
	// ErrDuplicateLabel is returned when a dense patch axis repeats a
	// label. A dense rectangle needs exactly one position per label.
	ErrDuplicateLabel = errors.New("duplicate label on axis")

	// ErrEmptySelector is returned when a Labels selector carries no
	// labels.
	ErrEmptySelector = errors.New("selector has no labels")
)
