/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var errMalformed = errors.New("malformed response")

// CategoryEntry is one element of the /categories data array.
type CategoryEntry struct {
	Name      string
	ClueCount int
}

// ClueEntry is one element of the /clues data array.
type ClueEntry struct {
	ID       int64
	Value    int64
	Category string
	Clue     string
	Response string
}

func dataArray(body []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", errMalformed)
	}

	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, fmt.Errorf("%w: missing data array", errMalformed)
	}

	return data.Array(), nil
}

// parseCategories keeps every entry with a string category name and skips
// the rest.
func parseCategories(body []byte) ([]CategoryEntry, error) {
	items, err := dataArray(body)
	if err != nil {
		return nil, err
	}

	entries := make([]CategoryEntry, 0, len(items))
	for _, item := range items {
		name := item.Get("category")
		if name.Type != gjson.String {
			continue
		}

		entries = append(entries, CategoryEntry{
			Name:      name.String(),
			ClueCount: int(item.Get("clue_count").Int()),
		})
	}

	return entries, nil
}

// parseClues keeps every entry whose clue and response are both strings.
func parseClues(body []byte) ([]ClueEntry, error) {
	items, err := dataArray(body)
	if err != nil {
		return nil, err
	}

	entries := make([]ClueEntry, 0, len(items))
	for _, item := range items {
		clue, response := item.Get("clue"), item.Get("response")
		if clue.Type != gjson.String || response.Type != gjson.String {
			continue
		}

		entries = append(entries, ClueEntry{
			ID:       item.Get("id").Int(),
			Value:    item.Get("value").Int(),
			Category: item.Get("category").String(),
			Clue:     clue.String(),
			Response: response.String(),
		})
	}

	return entries, nil
}
