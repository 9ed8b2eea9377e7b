/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import "errors"

var (
	// ErrSourceUnavailable means the trivia service could not be reached or
	// returned something unusable.
	ErrSourceUnavailable = errors.New("trivia source unavailable")

	// ErrEmptyCategory means a category name yielded zero clues.
	ErrEmptyCategory = errors.New("category has no clues")
)
