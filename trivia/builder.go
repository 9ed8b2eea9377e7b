/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Seednode/jeopardy/board"
	"go.uber.org/zap"
)

const (
	DefaultCategoryCount = 6
	DefaultQuestionCount = 5
	DefaultBatchSize     = 100
	DefaultMaxOffset     = 500
)

type Options struct {
	// CategoryCount is the board width.
	CategoryCount int

	// QuestionCount is the board height.
	QuestionCount int

	// BatchSize is how many category names are requested per build.
	BatchSize int

	// MaxOffset bounds the random offset into the category list, [1, MaxOffset].
	MaxOffset int

	// IntN overrides the random source; it must return a value in [0, n).
	IntN func(n int) int
}

func (o Options) withDefaults() Options {
	if o.CategoryCount <= 0 {
		o.CategoryCount = DefaultCategoryCount
	}
	if o.QuestionCount <= 0 {
		o.QuestionCount = DefaultQuestionCount
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxOffset <= 0 {
		o.MaxOffset = DefaultMaxOffset
	}
	if o.IntN == nil {
		o.IntN = rand.IntN
	}
	return o
}

// Builder assembles playable boards from a Source.
type Builder struct {
	source Source
	opts   Options
	logger *zap.Logger
}

func NewBuilder(source Source, opts Options, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Builder{
		source: source,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

func (b *Builder) Options() Options {
	return b.opts
}

// sourceError marks err as ErrSourceUnavailable unless the Source already did.
func sourceError(op string, err error) error {
	if errors.Is(err, ErrSourceUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, op, err)
}

// SelectCategoryNames fetches one batch of categories at a random offset and
// samples CategoryCount distinct names from it.
func (b *Builder) SelectCategoryNames(ctx context.Context) ([]string, error) {
	offset := 1 + b.opts.IntN(b.opts.MaxOffset)

	entries, err := b.source.Categories(ctx, b.opts.BatchSize, offset)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, sourceError("list categories", err)
	}

	seen := make(map[string]bool, len(entries))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		// The name is fetched back verbatim; trimming only decides blanks and duplicates.
		key := strings.TrimSpace(e.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, e.Name)
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no categories at offset %d", ErrSourceUnavailable, offset)
	}

	return Sample(names, b.opts.CategoryCount, b.opts.IntN), nil
}

// FetchCategory loads the clues for name and samples QuestionCount of them.
// Categories with fewer clues are returned undersized rather than rejected.
func (b *Builder) FetchCategory(ctx context.Context, name string) (board.Category, error) {
	entries, err := b.source.Clues(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return board.Category{}, ctx.Err()
		}
		return board.Category{}, sourceError(fmt.Sprintf("clues for %q", name), err)
	}

	if len(entries) == 0 {
		return board.Category{}, fmt.Errorf("%w: %q", ErrEmptyCategory, name)
	}

	picked := Sample(entries, b.opts.QuestionCount, b.opts.IntN)

	category := board.Category{
		Title: strings.TrimSpace(name),
		Clues: make([]board.Clue, 0, len(picked)),
	}
	for _, e := range picked {
		category.Clues = append(category.Clues, board.Clue{
			Question: e.Clue,
			Answer:   CleanAnswer(e.Response),
			Showing:  board.Hidden,
		})
	}

	return category, nil
}

// BuildBoard selects category names and then fetches each one in order.
// A category that fails is logged and left off the board; only a failure to
// list categories, or every category failing, aborts the build.
func (b *Builder) BuildBoard(ctx context.Context) (*board.Board, error) {
	names, err := b.SelectCategoryNames(ctx)
	if err != nil {
		return nil, err
	}

	result := &board.Board{
		Categories: make([]board.Category, 0, len(names)),
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		category, err := b.FetchCategory(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			b.logger.Warn("dropping category",
				zap.String("category", name),
				zap.Error(err),
			)
			continue
		}

		if len(category.Clues) < b.opts.QuestionCount {
			b.logger.Info("undersized category",
				zap.String("category", name),
				zap.Int("clues", len(category.Clues)),
			)
		}

		result.Categories = append(result.Categories, category)
	}

	if len(result.Categories) == 0 {
		return nil, fmt.Errorf("%w: none of %d categories had clues", ErrSourceUnavailable, len(names))
	}

	return result, nil
}
