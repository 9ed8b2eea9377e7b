/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package board holds the in-memory trivia board and the per-clue reveal
// state machine that drives it.
package board

import (
	"errors"
	"fmt"
)

// ErrInvalidCoordinate means a selection addressed a cell outside the board.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// RevealState tracks how much of a clue has been disclosed.
type RevealState int

const (
	Hidden RevealState = iota
	Question
	Answer
)

func (s RevealState) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Question:
		return "question"
	case Answer:
		return "answer"
	default:
		return fmt.Sprintf("RevealState(%d)", int(s))
	}
}

func (s RevealState) MarshalText() ([]byte, error) {
	switch s {
	case Hidden, Question, Answer:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("unknown reveal state %d", int(s))
	}
}

func (s *RevealState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "hidden":
		*s = Hidden
	case "question":
		*s = Question
	case "answer":
		*s = Answer
	default:
		return fmt.Errorf("unknown reveal state %q", text)
	}
	return nil
}

type Clue struct {
	Question string      `json:"question"`
	Answer   string      `json:"answer"`
	Showing  RevealState `json:"showing"`
}

// Advance moves the clue one step forward and reports the text to display.
// Answer is terminal: the answer is returned again and changed is false.
func (c *Clue) Advance() (text string, changed bool) {
	switch c.Showing {
	case Hidden:
		c.Showing = Question
		return c.Question, true
	case Question:
		c.Showing = Answer
		return c.Answer, true
	default:
		return c.Answer, false
	}
}

type Category struct {
	Title string `json:"title"`
	Clues []Clue `json:"clues"`
}

// Board is the full set of categories for one game. Categories are indexed
// left to right, clues top to bottom.
type Board struct {
	Categories []Category `json:"categories"`
}

// Reveal is the outcome of selecting a single cell.
type Reveal struct {
	Category int
	Clue     int
	Text     string
	Showing  RevealState
	Changed  bool
}

// Width is the number of categories on the board.
func (b *Board) Width() int {
	if b == nil {
		return 0
	}
	return len(b.Categories)
}

// Height is the clue count of the tallest category.
func (b *Board) Height() int {
	if b == nil {
		return 0
	}

	height := 0
	for _, c := range b.Categories {
		if len(c.Clues) > height {
			height = len(c.Clues)
		}
	}
	return height
}

// Clue returns the clue at the given coordinate.
func (b *Board) Clue(category, clue int) (*Clue, error) {
	if b == nil || category < 0 || category >= len(b.Categories) {
		return nil, fmt.Errorf("%w: (%d,%d)", ErrInvalidCoordinate, category, clue)
	}

	clues := b.Categories[category].Clues
	if clue < 0 || clue >= len(clues) {
		return nil, fmt.Errorf("%w: (%d,%d)", ErrInvalidCoordinate, category, clue)
	}

	return &clues[clue], nil
}

// Select applies one selection event to the clue at (category, clue).
func (b *Board) Select(category, clue int) (Reveal, error) {
	c, err := b.Clue(category, clue)
	if err != nil {
		return Reveal{}, err
	}

	text, changed := c.Advance()

	return Reveal{
		Category: category,
		Clue:     clue,
		Text:     text,
		Showing:  c.Showing,
		Changed:  changed,
	}, nil
}

// CellID is the DOM id used for the cell at (category, clue).
func CellID(category, clue int) string {
	return fmt.Sprintf("%d-%d", category, clue)
}
