// Package verify implements the deterministic sentence-verification engine.
//
// Given a submission, the active target character, and the verses already
// played this session, the engine classifies the submission into one of four
// outcomes: exact corpus match, homophone match, fuzzy (edit-distance-1)
// match, or no match. Tiers are evaluated strictly in that order and the
// first success wins; there is no speculative or parallel evaluation.
//
// The engine is a pure function of its inputs plus the corpus snapshot: it
// holds no mutable state and is safe for concurrent use. Corpus failures
// propagate to the caller untouched — retry policy belongs to the session
// orchestrator, not here.
package verify

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/feihua/internal/corpus"
	"github.com/MrWong99/feihua/internal/match"
)

const (
	// defaultCandidateLimit caps the number of poems fetched for the fuzzy
	// tier, bounding the per-request verification cost.
	defaultCandidateLimit = 1000

	// maxLengthDelta prunes fuzzy candidates: verses whose normalized rune
	// count differs from the submission's by more than this are skipped
	// before any phonetic or edit-distance work.
	maxLengthDelta = 2
)

// ErrInput reports a missing submission or target character. This is the
// caller's fault; retrying cannot help.
var ErrInput = errors.New("verify: submission and target character are required")

// Kind tags a [Result] with the tier that produced it.
type Kind int

const (
	// None means no tier matched, or a pre-check rejected the submission.
	None Kind = iota

	// Exact means a poem's raw content contains the submission literally.
	Exact

	// Homophone means a candidate verse shares the submission's tone-free
	// phonetic key.
	Homophone

	// Fuzzy means a candidate verse is exactly edit distance 1 from the
	// submission.
	Fuzzy
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Homophone:
		return "homophone"
	case Fuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// NoMatchReason explains why a [Result] carries [None].
type NoMatchReason string

const (
	// ReasonMissingTargetChar: the normalized submission does not contain
	// the target character. Rejected before any corpus query.
	ReasonMissingTargetChar NoMatchReason = "missing_target_char"

	// ReasonAlreadyUsed: the submission equals (after normalization) a verse
	// already played this session. Rejected before any corpus query.
	ReasonAlreadyUsed NoMatchReason = "already_used"

	// ReasonNotFound: every tier was evaluated and none matched.
	ReasonNotFound NoMatchReason = "not_found"
)

// Result is the tagged outcome of a verification. Which fields are populated
// depends on Kind:
//
//   - Exact: Poem is set; Verse and Differences are empty (the submission is
//     itself the canonical text).
//   - Homophone, Fuzzy: Poem, Verse (the canonical verse), and Differences
//     (positional mismatches against the normalized submission) are set.
//   - None: Reason is set; everything else is empty.
type Result struct {
	Kind        Kind
	Poem        *corpus.Poem
	Verse       string
	Differences []match.CharDiff
	Reason      NoMatchReason
}

// Matched reports whether the result is any of the accepting kinds.
func (r *Result) Matched() bool {
	return r.Kind != None
}

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithCandidateLimit overrides the fuzzy-tier poem fetch cap. Default: 1000.
func WithCandidateLimit(n int) Option {
	return func(e *Engine) {
		e.candidateLimit = n
	}
}

// Engine classifies submissions against the corpus. Construct with [NewEngine];
// the zero value is not usable.
type Engine struct {
	store          corpus.Store
	transcriber    match.Transcriber
	candidateLimit int
}

// NewEngine creates an [Engine] backed by the given corpus store and phonetic
// transcriber.
func NewEngine(store corpus.Store, transcriber match.Transcriber, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		transcriber:    transcriber,
		candidateLimit: defaultCandidateLimit,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Verify classifies submission for the round whose target character is
// targetChar, given the verses already played. The tiers run strictly in
// order and short-circuit on the first match:
//
//  1. Pre-checks (no corpus access): the normalized submission must contain
//     targetChar and must not equal any normalized used verse.
//  2. Exact tier: some poem's raw content contains the submission literally.
//  3. Fuzzy tier: among poems containing targetChar (bounded candidate set),
//     the first verse within the length-delta prune window that either
//     shares the submission's phonetic key (homophone) or sits at edit
//     distance exactly 1 (fuzzy) wins. Candidate order is corpus-dependent;
//     the engine commits to the first qualifying verse, not the closest one.
//
// A nil error with Kind == None is a legitimate negative result. A non-nil
// error is a transient corpus failure.
func (e *Engine) Verify(ctx context.Context, submission, targetChar string, usedVerses []string) (*Result, error) {
	if submission == "" || targetChar == "" {
		return nil, ErrInput
	}

	normalized := match.Normalize(submission)

	if !strings.Contains(normalized, targetChar) {
		return &Result{Kind: None, Reason: ReasonMissingTargetChar}, nil
	}
	for _, used := range usedVerses {
		if match.Normalize(used) == normalized {
			return &Result{Kind: None, Reason: ReasonAlreadyUsed}, nil
		}
	}

	// Exact tier: raw substring containment, punctuation and all.
	poem, err := e.store.FindByContent(ctx, submission)
	if err != nil {
		return nil, err
	}
	if poem != nil {
		return &Result{Kind: Exact, Poem: poem}, nil
	}

	// Fuzzy tier over the bounded candidate set.
	candidates, err := e.store.FindByCharacter(ctx, targetChar, e.candidateLimit)
	if err != nil {
		return nil, err
	}

	submissionKey := e.transcriber.Key(normalized)
	submissionLen := utf8.RuneCountInString(normalized)

	for i := range candidates {
		p := &candidates[i]
		for _, verse := range p.Verses() {
			nv := match.Normalize(verse)
			if delta := utf8.RuneCountInString(nv) - submissionLen; delta > maxLengthDelta || delta < -maxLengthDelta {
				continue
			}

			if e.transcriber.Key(nv) == submissionKey {
				return &Result{
					Kind:        Homophone,
					Poem:        p,
					Verse:       verse,
					Differences: match.Diff(normalized, nv),
				}, nil
			}
			if match.EditDistance(normalized, nv) == 1 {
				return &Result{
					Kind:        Fuzzy,
					Poem:        p,
					Verse:       verse,
					Differences: match.Diff(normalized, nv),
				}, nil
			}
		}
	}

	return &Result{Kind: None, Reason: ReasonNotFound}, nil
}
