/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package board

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Placeholder is shown in every cell whose clue is still hidden.
const Placeholder = "?"

type Header struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Cell struct {
	ID         string      `json:"id"`
	Category   int         `json:"category"`
	Clue       int         `json:"clue"`
	Text       string      `json:"text"`
	Showing    RevealState `json:"showing"`
	Terminal   bool        `json:"terminal"`
	Selectable bool        `json:"selectable"`
}

// Grid is the rendered form of a board: a header row plus one row per clue
// index, with cells ordered by category.
type Grid struct {
	Headers []Header `json:"headers"`
	Rows    [][]Cell `json:"rows"`
}

// TitleCase formats a category title for display.
func TitleCase(s string) string {
	// Casers carry state, so one per call.
	return cases.Title(language.English).String(s)
}

// DisplayText is what a cell shows for the clue in its current state.
func DisplayText(c Clue) string {
	switch c.Showing {
	case Question:
		return c.Question
	case Answer:
		return c.Answer
	default:
		return Placeholder
	}
}

func Render(b *Board) Grid {
	width, height := b.Width(), b.Height()

	g := Grid{
		Headers: make([]Header, 0, width),
		Rows:    make([][]Cell, 0, height),
	}

	for i := 0; i < width; i++ {
		g.Headers = append(g.Headers, Header{
			ID:    fmt.Sprintf("cat-%d", i),
			Title: TitleCase(b.Categories[i].Title),
		})
	}

	for j := 0; j < height; j++ {
		row := make([]Cell, 0, width)
		for i := 0; i < width; i++ {
			cell := Cell{
				ID:       CellID(i, j),
				Category: i,
				Clue:     j,
			}

			// Undersized categories leave blank cells at the bottom of their column.
			if clue, err := b.Clue(i, j); err == nil {
				cell.Text = DisplayText(*clue)
				cell.Showing = clue.Showing
				cell.Terminal = clue.Showing == Answer
				cell.Selectable = !cell.Terminal
			}

			row = append(row, cell)
		}
		g.Rows = append(g.Rows, row)
	}

	return g
}
