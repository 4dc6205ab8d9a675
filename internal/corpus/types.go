// Package corpus defines the poem collection the game draws from and the
// query contract the verification engine and orchestrator depend on.
//
// The corpus is read-mostly: poems are loaded once (from Postgres or a YAML
// seed file) and never mutated afterwards. Verses are not stored — they are
// recomputed on demand by splitting a poem's content on verse punctuation.
package corpus

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/feihua/internal/match"
)

// ErrUnavailable marks a transient corpus failure (connection refused, query
// timeout, ...). Callers may retry; the verification engine propagates it
// untouched and never retries itself.
var ErrUnavailable = errors.New("corpus unavailable")

// Poem is a single work in the collection. Immutable after load.
type Poem struct {
	// ID is an opaque identifier, stable for the lifetime of the corpus.
	ID string `json:"id" yaml:"id"`

	// Title is the poem's title.
	Title string `json:"title" yaml:"title"`

	// Author is the poet's name.
	Author string `json:"author" yaml:"author"`

	// Content is the full text including verse punctuation.
	Content string `json:"content" yaml:"content"`
}

// Verses splits the poem's content into its punctuation-delimited verses.
// Every returned verse is non-empty.
func (p *Poem) Verses() []string {
	return match.SplitVerses(p.Content)
}

// Store is the corpus query collaborator. Implementations must be safe for
// concurrent use. Failures are transient and wrap [ErrUnavailable]; an empty
// result is never an error.
type Store interface {
	// FindByContent returns a poem whose raw content contains substring
	// literally, or (nil, nil) when no poem matches. Which poem is returned
	// when several match is corpus-dependent.
	FindByContent(ctx context.Context, substring string) (*Poem, error)

	// FindByCharacter returns up to limit poems whose content contains char.
	// Result order is corpus-dependent.
	FindByCharacter(ctx context.Context, char string, limit int) ([]Poem, error)

	// FindByAuthor returns up to limit poems whose author name contains
	// author as a substring.
	FindByAuthor(ctx context.Context, author string, limit int) ([]Poem, error)

	// RandomPoems returns up to limit poems in random order.
	RandomPoems(ctx context.Context, limit int) ([]Poem, error)
}

// unavailable wraps err as a transient corpus failure for the given operation.
// The result matches errors.Is(err, ErrUnavailable) while keeping the cause
// in the message.
func unavailable(op string, err error) error {
	return fmt.Errorf("corpus: %s: %v: %w", op, err, ErrUnavailable)
}
