// Package judge implements the lenient LLM judgment tier.
//
// When deterministic verification finds no corpus match, the judge asks a
// language model whether the submission is a plausibly mis-recognized verse.
// The model answers in strict JSON; anything else is a protocol error, never
// a negative judgment. Judgments are cached per submission, target character,
// and conversation-context fingerprint.
//
// The judge never accepts on its own authority: a positive judgment carries a
// corrected sentence that the caller must re-verify against the corpus before
// treating the round as won.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/feihua/internal/observe"
	"github.com/MrWong99/feihua/pkg/provider/llm"
)

const (
	// DefaultTimeout bounds one model call. The game is interactive; a slow
	// judgment is worth less than a deterministic fallback.
	DefaultTimeout = 5 * time.Second

	promptTemperature = 0.7
	promptMaxTokens   = 500
)

// Confidence levels the model may report.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Result is one judgment.
type Result struct {
	// IsCorrect is the model's verdict on the submission.
	IsCorrect bool `json:"isCorrect"`

	// CorrectedSentence is the canonical verse the model believes was meant.
	// Only meaningful on a positive verdict.
	CorrectedSentence string `json:"correctedSentence,omitempty"`

	// Confidence is one of the Confidence* levels, or empty when the model
	// omitted it.
	Confidence string `json:"confidence,omitempty"`

	// Reason is the model's explanation, passed through to the player.
	Reason string `json:"reason"`
}

// Request carries everything one judgment needs.
type Request struct {
	// Submission is the recognized or typed text to judge.
	Submission string

	// TargetChar is the round's required character.
	TargetChar string

	// UsedVerses lists verses already played this session.
	UsedVerses []string

	// Context is the session's accumulated answering style. Optional.
	Context *ConversationContext
}

// Option configures a [Judge].
type Option func(*Judge)

// WithTimeout overrides the per-call deadline. Default: 5s.
func WithTimeout(d time.Duration) Option {
	return func(j *Judge) {
		j.timeout = d
	}
}

// WithCache replaces the default judgment cache.
func WithCache(c *Cache) Option {
	return func(j *Judge) {
		j.cache = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(j *Judge) {
		j.logger = l
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(j *Judge) {
		j.metrics = m
	}
}

// Judge asks a model whether a submission is a plausibly mis-recognized
// verse. Construct with [New]; safe for concurrent use.
type Judge struct {
	provider llm.Provider
	cache    *Cache
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// New creates a Judge backed by the given completion provider.
func New(provider llm.Provider, opts ...Option) *Judge {
	j := &Judge{
		provider: provider,
		cache:    NewCache(DefaultCacheTTL, DefaultCacheSize),
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(j)
	}
	if j.metrics == nil {
		j.metrics = observe.DefaultMetrics()
	}
	return j
}

// Evaluate judges one submission. A cache hit skips the model entirely.
// On failure the returned error is a [*Error] matching [ErrJudge]; the
// caller decides whether to fall back to deterministic verification.
func (j *Judge) Evaluate(ctx context.Context, req Request) (*Result, error) {
	key := cacheKey(req)
	if r, ok := j.cache.Get(key); ok {
		j.metrics.RecordCacheEvent(ctx, true)
		j.logger.Debug("judge cache hit", "targetChar", req.TargetChar)
		return r, nil
	}
	j.metrics.RecordCacheEvent(ctx, false)

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	resp, err := j.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature: promptTemperature,
		MaxTokens:   promptMaxTokens,
	})
	if err != nil {
		return nil, transportErr("complete", err)
	}

	result, err := parseReply(resp.Content)
	if err != nil {
		return nil, err
	}

	j.cache.Put(key, result)
	j.logger.Debug("judgment complete",
		"targetChar", req.TargetChar,
		"isCorrect", result.IsCorrect,
		"confidence", result.Confidence)
	return result, nil
}

// CacheStats exposes the cache hit/miss counters.
func (j *Judge) CacheStats() (hits, misses uint64) {
	return j.cache.Stats()
}

func cacheKey(req Request) string {
	key := req.Submission + "_" + req.TargetChar
	if fp := req.Context.Fingerprint(); fp != "" {
		key += "_" + fp
	}
	return key
}

// buildPrompt renders the Chinese judging instruction: rules, current game
// state, optional per-session context, and the JSON output contract.
func buildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString(`你是一个古诗词专家，负责判断儿童语音识别的答题内容是否正确。

**判断规则**：
1. 儿童说话可能存在口音、咬字不清等问题，识别结果可能有误
2. 如果识别文本与某句诗词的意思、韵律、字数基本一致，即可判定正确
3. 允许个别字词的谐音、同音字替换（如"晓"识别为"小"）
4. 允许1-2个字的识别错误，只要能推断出正确诗句
5. 必须包含指定的令字（关键字）
6. 不能与已使用的诗句重复

**当前游戏信息**：
`)
	used := "无"
	if len(req.UsedVerses) > 0 {
		used = strings.Join(req.UsedVerses, "、")
	}
	fmt.Fprintf(&b, "- 令字：%s\n- 已使用诗句：%s\n- 识别文本：%s", req.TargetChar, used, req.Submission)

	if !req.Context.Empty() {
		b.WriteString("\n\n**历史上下文（多轮对话）**：")
		if len(req.Context.RecentHistory) > 0 {
			b.WriteString("\n- 前几轮答题记录：\n")
			for _, h := range req.Context.RecentHistory {
				verdict := "错误"
				if h.Correct {
					verdict = "正确"
				}
				fmt.Fprintf(&b, "  第%d轮: 识别\"%s\" -> 修正\"%s\" (%s)\n", h.Round, h.Recognized, h.Corrected, verdict)
			}
		}
		if len(req.Context.CommonErrors) > 0 {
			fmt.Fprintf(&b, "- 用户常见识别错误：%s\n", strings.Join(req.Context.CommonErrors, "、"))
		}
		fmt.Fprintf(&b, "- 用户识别准确率：%.1f%%", req.Context.AccuracyRate*100)
		if req.Context.Confidence != "" {
			fmt.Fprintf(&b, "\n- 平均置信度：%s", req.Context.Confidence)
		}
	}

	b.WriteString(`

**输出要求**：
请以 JSON 格式返回判断结果，格式如下：
` + "```json" + `
{
  "isCorrect": true/false,
  "correctedSentence": "修正后的标准诗句（如果正确的话）",
  "confidence": "high/medium/low",
  "reason": "判断理由"
}
` + "```" + `

注意：只返回 JSON，不要有其他文字。`)

	return b.String()
}

// parseReply extracts the JSON object from the model's reply, tolerating
// surrounding prose and code fences, and requires the isCorrect and reason
// fields to be present and well typed.
func parseReply(content string) (*Result, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return nil, protocolErr("parse", errors.New("no JSON object in reply"))
	}

	var raw struct {
		IsCorrect         *bool   `json:"isCorrect"`
		CorrectedSentence string  `json:"correctedSentence"`
		Confidence        string  `json:"confidence"`
		Reason            *string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, protocolErr("parse", err)
	}
	if raw.IsCorrect == nil || raw.Reason == nil {
		return nil, protocolErr("parse", errors.New("reply missing isCorrect or reason"))
	}

	return &Result{
		IsCorrect:         *raw.IsCorrect,
		CorrectedSentence: raw.CorrectedSentence,
		Confidence:        raw.Confidence,
		Reason:            *raw.Reason,
	}, nil
}
