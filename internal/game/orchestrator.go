package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/feihua/internal/corpus"
	"github.com/MrWong99/feihua/internal/judge"
	"github.com/MrWong99/feihua/internal/match"
	"github.com/MrWong99/feihua/internal/observe"
	"github.com/MrWong99/feihua/internal/verify"
)

// opponentCandidateLimit caps the poems considered when picking an opponent
// verse or anchoring a hint.
const opponentCandidateLimit = 500

var (
	// ErrKeyword is returned when the keyword is not exactly one character.
	ErrKeyword = errors.New("game: keyword must be a single character")

	// ErrGameOver is returned for turns on a finished session.
	ErrGameOver = errors.New("game: session is over")

	// ErrNoOpening is returned when no poem contains the requested keyword.
	ErrNoOpening = errors.New("game: no poem contains the keyword")
)

// TurnResult is the outcome of one player turn.
type TurnResult struct {
	Valid            bool             `json:"valid"`
	Message          string           `json:"message"`
	Method           string           `json:"method,omitempty"`
	Title            string           `json:"title,omitempty"`
	Author           string           `json:"author,omitempty"`
	CorrectedVerse   string           `json:"correctedVerse,omitempty"`
	Differences      []match.CharDiff `json:"differences,omitempty"`
	RemainingChances int              `json:"remainingChances"`
	GameOver         bool             `json:"gameOver"`
	Result           string           `json:"result,omitempty"`
	Opponent         *OpponentVerse   `json:"opponent,omitempty"`
}

// OpponentVerse is the machine's reply after a successful player turn.
type OpponentVerse struct {
	Verse  string `json:"verse"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Opening is the machine's first verse of a new game.
type Opening struct {
	Verse  string `json:"verse"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Hint is a graded clue about an answerable verse.
type Hint struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// Orchestrator drives game sessions: it owns the session manager and runs
// verification, judgment, and opponent turns. Safe for concurrent use; turns
// on the same session are serialized.
type Orchestrator struct {
	store   corpus.Store
	engine  *verify.Engine
	judge   *judge.Judge
	manager *Manager
	metrics *observe.Metrics
	logger  *slog.Logger
}

// New creates an Orchestrator. jdg may be nil, in which case every round is
// decided by deterministic verification alone.
func New(store corpus.Store, engine *verify.Engine, jdg *judge.Judge, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		engine:  engine,
		judge:   jdg,
		manager: NewManager(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Manager returns the session manager.
func (o *Orchestrator) Manager() *Manager {
	return o.manager
}

// Start creates a session for the given keyword. The machine opens, so the
// returned session already has one verse of history.
func (o *Orchestrator) Start(ctx context.Context, keyword string) (*Session, *Opening, error) {
	if utf8.RuneCountInString(keyword) != 1 {
		return nil, nil, ErrKeyword
	}

	verse, poem, err := o.pickVerse(ctx, keyword, nil)
	if err != nil {
		return nil, nil, err
	}
	if poem == nil {
		return nil, nil, ErrNoOpening
	}

	sess := newSession(keyword)
	sess.History = append(sess.History, HistoryItem{
		Round:   1,
		Speaker: SpeakerOpponent,
		Verse:   verse,
		Title:   poem.Title,
		Author:  poem.Author,
	})
	sess.UsedVerses = append(sess.UsedVerses, verse)

	o.manager.add(sess)
	o.metrics.ActiveSessions.Add(ctx, 1)
	o.logger.Info("game started", "session", sess.ID, "keyword", keyword)

	return sess, &Opening{Verse: verse, Title: poem.Title, Author: poem.Author}, nil
}

// End removes a session, ending it first if still in progress.
func (o *Orchestrator) End(ctx context.Context, id string) error {
	sess, err := o.manager.Get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	if !sess.over() {
		sess.endLocked(PlayerLost)
	}
	sess.mu.Unlock()

	o.manager.Remove(id)
	o.metrics.ActiveSessions.Add(ctx, -1)
	return nil
}

// PlayerTurn runs one player submission through verification and, when that
// is inconclusive, the lenient judge. A judge failure of any kind degrades
// to one more deterministic verification; the round is never lost to a model
// outage. A successful turn immediately triggers the opponent's reply.
func (o *Orchestrator) PlayerTurn(ctx context.Context, id, submission string) (*TurnResult, error) {
	sess, err := o.manager.Get(id)
	if err != nil {
		return nil, err
	}

	ctx, span := observe.StartSpan(ctx, "game.player_turn",
		trace.WithAttributes(
			attribute.String("session.id", sess.ID),
			attribute.String("game.keyword", sess.Keyword),
		),
	)
	defer span.End()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.over() {
		return nil, ErrGameOver
	}

	start := time.Now()
	res, err := o.engine.Verify(ctx, submission, sess.Keyword, sess.UsedVerses)
	if err != nil {
		return nil, fmt.Errorf("game: verify: %w", err)
	}
	o.metrics.RecordVerification(ctx, res.Kind.String(), time.Since(start).Seconds())

	if res.Matched() {
		return o.acceptLocked(ctx, sess, submission, res, res.Kind.String(), "")
	}

	if res.Reason == verify.ReasonNotFound && o.judge != nil {
		return o.judgeTurnLocked(ctx, sess, submission)
	}

	return o.rejectLocked(ctx, sess, rejectMessage(res.Reason)), nil
}

// judgeTurnLocked consults the model and either accepts its corrected verse
// (after corpus re-verification) or falls back to the deterministic engine
// exactly once. Must be called with sess.mu held.
func (o *Orchestrator) judgeTurnLocked(ctx context.Context, sess *Session, submission string) (*TurnResult, error) {
	ctx, span := observe.StartSpan(ctx, "judge.evaluate")
	defer span.End()

	start := time.Now()
	verdict, err := o.judge.Evaluate(ctx, judge.Request{
		Submission: submission,
		TargetChar: sess.Keyword,
		UsedVerses: sess.UsedVerses,
		Context:    &sess.Convo,
	})
	o.metrics.RecordJudgment(ctx, time.Since(start).Seconds())

	if err != nil {
		var je *judge.Error
		kind := "transport"
		if errors.As(err, &je) {
			kind = je.Kind.String()
		}
		o.metrics.RecordFallback(ctx, kind)
		o.logger.Warn("judge unavailable, degrading to deterministic verification",
			"session", sess.ID, "kind", kind, "error", err)
		return o.fallbackLocked(ctx, sess, submission)
	}

	if !verdict.IsCorrect {
		sess.Convo.RecordRound(judge.RoundRecord{
			Round:      sess.Round,
			Recognized: submission,
			Corrected:  verdict.CorrectedSentence,
			Correct:    false,
			Confidence: verdict.Confidence,
		})
		return o.rejectLocked(ctx, sess, verdict.Reason), nil
	}

	// The judge is lenient; the corpus has the last word. Re-verify the
	// corrected verse before accepting the round.
	corrected := verdict.CorrectedSentence
	if corrected == "" {
		corrected = submission
	}
	poem, err := o.store.FindByContent(ctx, corrected)
	if err != nil {
		return nil, fmt.Errorf("game: re-verify judgment: %w", err)
	}
	if poem == nil {
		o.metrics.RecordFallback(ctx, "reverify")
		o.logger.Warn("judge accepted a verse the corpus does not contain",
			"session", sess.ID, "corrected", corrected)
		return o.fallbackLocked(ctx, sess, submission)
	}

	sess.Convo.RecordRound(judge.RoundRecord{
		Round:      sess.Round,
		Recognized: submission,
		Corrected:  corrected,
		Correct:    true,
		Confidence: verdict.Confidence,
	})
	res := &verify.Result{Kind: verify.Homophone, Poem: poem, Verse: corrected}
	return o.acceptLocked(ctx, sess, submission, res, "judge", verdict.Reason)
}

// fallbackLocked reruns deterministic verification after a failed judge path.
// It runs at most once per turn. Must be called with sess.mu held.
func (o *Orchestrator) fallbackLocked(ctx context.Context, sess *Session, submission string) (*TurnResult, error) {
	res, err := o.engine.Verify(ctx, submission, sess.Keyword, sess.UsedVerses)
	if err != nil {
		return nil, fmt.Errorf("game: fallback verify: %w", err)
	}
	if res.Matched() {
		return o.acceptLocked(ctx, sess, submission, res, res.Kind.String(), "")
	}
	return o.rejectLocked(ctx, sess, rejectMessage(res.Reason)), nil
}

// acceptLocked records a successful player turn and plays the opponent's
// reply. Must be called with sess.mu held.
func (o *Orchestrator) acceptLocked(ctx context.Context, sess *Session, submission string, res *verify.Result, method, reason string) (*TurnResult, error) {
	verse := res.Verse
	if verse == "" {
		verse = submission
	}

	sess.History = append(sess.History, HistoryItem{
		Round:   sess.Round,
		Speaker: SpeakerPlayer,
		Verse:   verse,
		Title:   res.Poem.Title,
		Author:  res.Poem.Author,
		Method:  method,
	})
	sess.UsedVerses = append(sess.UsedVerses, verse)
	sess.Stats.Correct++
	sess.Stats.TotalRounds++
	sess.RemainingChances = DefaultChances
	sess.HintLevel = 0
	sess.hintVerse = ""
	sess.hintPoem = nil
	sess.emit(Event{Type: "player_verse", Payload: sess.History[len(sess.History)-1]})

	message := "验证成功"
	switch method {
	case "homophone":
		message = "验证成功（谐音匹配）"
	case "fuzzy":
		message = "验证成功（模糊匹配）"
	case "judge":
		if reason != "" {
			message = reason
		}
	}

	result := &TurnResult{
		Valid:            true,
		Message:          message,
		Method:           method,
		Title:            res.Poem.Title,
		Author:           res.Poem.Author,
		CorrectedVerse:   res.Verse,
		Differences:      res.Differences,
		RemainingChances: sess.RemainingChances,
	}

	reply, poem, err := o.pickVerse(ctx, sess.Keyword, sess.UsedVerses)
	if err != nil {
		return nil, fmt.Errorf("game: opponent turn: %w", err)
	}
	if poem == nil {
		sess.endLocked(PlayerWon)
		result.GameOver = true
		result.Result = sess.Phase.String()
		o.logger.Info("opponent out of verses", "session", sess.ID)
		return result, nil
	}

	sess.Round++
	item := HistoryItem{
		Round:   sess.Round,
		Speaker: SpeakerOpponent,
		Verse:   reply,
		Title:   poem.Title,
		Author:  poem.Author,
	}
	sess.History = append(sess.History, item)
	sess.UsedVerses = append(sess.UsedVerses, reply)
	sess.emit(Event{Type: "opponent_verse", Payload: item})

	result.Opponent = &OpponentVerse{Verse: reply, Title: poem.Title, Author: poem.Author}
	return result, nil
}

// rejectLocked records a failed player turn. Must be called with sess.mu held.
func (o *Orchestrator) rejectLocked(ctx context.Context, sess *Session, message string) *TurnResult {
	sess.Stats.Wrong++
	sess.RemainingChances--

	result := &TurnResult{
		Valid:            false,
		Message:          message,
		RemainingChances: sess.RemainingChances,
	}
	if sess.RemainingChances <= 0 {
		sess.endLocked(PlayerLost)
		result.GameOver = true
		result.Result = sess.Phase.String()
	}
	return result
}

// Skip burns one chance without an answer.
func (o *Orchestrator) Skip(id string) (*TurnResult, error) {
	sess, err := o.manager.Get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.over() {
		return nil, ErrGameOver
	}
	return o.rejectLocked(context.Background(), sess, "跳过本回合"), nil
}

// Hint returns a progressively more revealing clue about one answerable
// verse. Levels: 1 author, 2 title, 3 the verse's first character; beyond
// that only encouragement. Consecutive hints describe the same verse.
func (o *Orchestrator) Hint(ctx context.Context, id string) (*Hint, error) {
	sess, err := o.manager.Get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.over() {
		return nil, ErrGameOver
	}

	if sess.hintPoem == nil {
		verse, poem, err := o.pickVerse(ctx, sess.Keyword, sess.UsedVerses)
		if err != nil {
			return nil, fmt.Errorf("game: hint: %w", err)
		}
		if poem == nil {
			return &Hint{Level: sess.HintLevel, Text: "想不出来就跳过吧"}, nil
		}
		sess.hintPoem = poem
		sess.hintVerse = verse
	}

	sess.HintLevel++
	sess.Stats.HintsUsed++

	var text string
	switch sess.HintLevel {
	case 1:
		text = fmt.Sprintf("提示：这句诗的作者是%s", sess.hintPoem.Author)
	case 2:
		text = fmt.Sprintf("提示：这句诗出自《%s》", sess.hintPoem.Title)
	case 3:
		first, _ := utf8.DecodeRuneInString(sess.hintVerse)
		text = fmt.Sprintf("提示：这句诗的第一个字是「%c」", first)
	default:
		text = "加油，再想一想！"
	}

	h := &Hint{Level: sess.HintLevel, Text: text}
	sess.emit(Event{Type: "hint", Payload: h})
	return h, nil
}

// Opponent picks an unused verse containing char, independent of any
// session. A nil result with a nil error means no verse is left.
func (o *Orchestrator) Opponent(ctx context.Context, char string, used []string) (*OpponentVerse, error) {
	if utf8.RuneCountInString(char) != 1 {
		return nil, ErrKeyword
	}
	verse, poem, err := o.pickVerse(ctx, char, used)
	if err != nil {
		return nil, fmt.Errorf("game: opponent verse: %w", err)
	}
	if poem == nil {
		return nil, nil
	}
	return &OpponentVerse{Verse: verse, Title: poem.Title, Author: poem.Author}, nil
}

// RandomChar draws a keyword candidate from a random poem.
func (o *Orchestrator) RandomChar(ctx context.Context) (string, error) {
	poems, err := o.store.RandomPoems(ctx, 1)
	if err != nil {
		return "", fmt.Errorf("game: random char: %w", err)
	}
	if len(poems) == 0 {
		return "", ErrNoOpening
	}

	runes := []rune(match.Normalize(poems[0].Content))
	if len(runes) == 0 {
		return "", ErrNoOpening
	}
	return string(runes[rand.IntN(len(runes))]), nil
}

// pickVerse selects a random unused verse containing char. A nil poem with a
// nil error means no qualifying verse exists.
func (o *Orchestrator) pickVerse(ctx context.Context, char string, used []string) (string, *corpus.Poem, error) {
	start := time.Now()
	candidates, err := o.store.FindByCharacter(ctx, char, opponentCandidateLimit)
	o.metrics.CorpusQueryDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("query", "find_by_character")))
	if err != nil {
		return "", nil, err
	}

	usedSet := make(map[string]struct{}, len(used))
	for _, u := range used {
		usedSet[match.Normalize(u)] = struct{}{}
	}

	for _, i := range rand.Perm(len(candidates)) {
		p := &candidates[i]
		for _, verse := range p.Verses() {
			if !strings.Contains(verse, char) {
				continue
			}
			if _, taken := usedSet[match.Normalize(verse)]; taken {
				continue
			}
			return verse, p, nil
		}
	}
	return "", nil, nil
}

func rejectMessage(reason verify.NoMatchReason) string {
	switch reason {
	case verify.ReasonMissingTargetChar:
		return "诗句中不包含令字"
	case verify.ReasonAlreadyUsed:
		return "这句诗已经用过了"
	default:
		return "诗词库中没有找到这句诗"
	}
}
