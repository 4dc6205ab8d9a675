// Package game holds the session model and the turn orchestrator for the
// flying-flower game: a player and the machine opponent alternate verses
// that must contain the session's keyword character.
package game

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/feihua/internal/corpus"
	"github.com/MrWong99/feihua/internal/judge"
)

// DefaultChances is the number of wrong answers a player may give per round
// before losing. A correct answer restores the full allowance.
const DefaultChances = 3

// Speaker identifies who played a verse.
type Speaker string

const (
	SpeakerPlayer   Speaker = "player"
	SpeakerOpponent Speaker = "opponent"
)

// Phase is a session's lifecycle state.
type Phase int

const (
	// Playing means the game is in progress.
	Playing Phase = iota

	// PlayerWon means the opponent ran out of verses.
	PlayerWon

	// PlayerLost means the player ran out of chances.
	PlayerLost
)

// String returns the phase's wire name.
func (p Phase) String() string {
	switch p {
	case PlayerWon:
		return "player_won"
	case PlayerLost:
		return "player_lost"
	default:
		return "playing"
	}
}

// HistoryItem is one verse played in a session.
type HistoryItem struct {
	Round   int     `json:"round"`
	Speaker Speaker `json:"speaker"`
	Verse   string  `json:"verse"`
	Title   string  `json:"title,omitempty"`
	Author  string  `json:"author,omitempty"`
	Method  string  `json:"method,omitempty"`
}

// Stats accumulates per-session play statistics.
type Stats struct {
	TotalRounds int       `json:"totalRounds"`
	Correct     int       `json:"correct"`
	Wrong       int       `json:"wrong"`
	HintsUsed   int       `json:"hintsUsed"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt,omitzero"`
}

// Event is a session state change pushed to live subscribers.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Session is one game. All orchestrator methods lock the session; direct
// field access is only safe before the session is shared.
type Session struct {
	ID               string
	Keyword          string
	Round            int
	RemainingChances int
	HintLevel        int
	Phase            Phase
	History          []HistoryItem
	UsedVerses       []string
	Stats            Stats
	Convo            judge.ConversationContext

	mu      sync.Mutex
	subs    map[int]chan Event
	nextSub int

	// hintPoem and hintVerse anchor consecutive hints to one answerable
	// verse. Cleared on every correct answer.
	hintPoem  *corpus.Poem
	hintVerse string
}

func newSession(keyword string) *Session {
	return &Session{
		ID:               uuid.NewString(),
		Keyword:          keyword,
		Round:            1,
		RemainingChances: DefaultChances,
		Phase:            Playing,
		Stats:            Stats{StartedAt: time.Now()},
		subs:             make(map[int]chan Event),
	}
}

// Subscribe registers a live event listener. The returned cancel function
// must be called when the listener goes away. Slow listeners drop events
// rather than blocking the game.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, 16)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// emit must be called with s.mu held.
func (s *Session) emit(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// over must be called with s.mu held.
func (s *Session) over() bool {
	return s.Phase != Playing
}

// endLocked finishes the game. Must be called with s.mu held.
func (s *Session) endLocked(phase Phase) {
	s.Phase = phase
	s.Stats.EndedAt = time.Now()
	s.emit(Event{Type: "game_over", Payload: map[string]any{
		"result": phase.String(),
		"stats":  s.Stats,
	}})
}

// Snapshot returns a copy of the session's public state for API responses.
func (s *Session) Snapshot() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]HistoryItem, len(s.History))
	copy(history, s.History)
	used := make([]string, len(s.UsedVerses))
	copy(used, s.UsedVerses)

	return SessionView{
		ID:               s.ID,
		Keyword:          s.Keyword,
		Round:            s.Round,
		RemainingChances: s.RemainingChances,
		HintLevel:        s.HintLevel,
		Phase:            s.Phase.String(),
		History:          history,
		UsedVerses:       used,
		Stats:            s.Stats,
	}
}

// SessionView is the immutable API representation of a session.
type SessionView struct {
	ID               string        `json:"id"`
	Keyword          string        `json:"keyword"`
	Round            int           `json:"round"`
	RemainingChances int           `json:"remainingChances"`
	HintLevel        int           `json:"hintLevel"`
	Phase            string        `json:"phase"`
	History          []HistoryItem `json:"history"`
	UsedVerses       []string      `json:"usedVerses"`
	Stats            Stats         `json:"stats"`
}
