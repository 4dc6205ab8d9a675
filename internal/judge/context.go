package judge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// historyLimit bounds the per-session round history handed to the model.
	historyLimit = 3

	// commonErrorLimit bounds the recognition-error list; oldest entries are
	// dropped first.
	commonErrorLimit = 10
)

// RoundRecord is one completed round as the judge saw it.
type RoundRecord struct {
	Round      int    `json:"round"`
	Recognized string `json:"recognizedText"`
	Corrected  string `json:"correctedSentence"`
	Correct    bool   `json:"isCorrect"`

	// Confidence is the level the judge reported for this round, one of the
	// Confidence* constants. Empty when the model omitted it.
	Confidence string `json:"confidence,omitempty"`
}

// confidenceScore maps a reported confidence level to a numeric weight so
// levels can be averaged across rounds. Unknown levels score zero and are
// excluded from the average.
func confidenceScore(level string) int {
	switch level {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// confidenceLevel is the inverse of [confidenceScore] for an averaged value.
func confidenceLevel(avg float64) string {
	switch {
	case avg >= 2.5:
		return ConfidenceHigh
	case avg >= 1.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ConversationContext accumulates a session's answering style so later
// judgments can account for the speaker's recurring recognition errors.
// It is owned by a single session and is not safe for concurrent use.
type ConversationContext struct {
	RecentHistory []RoundRecord `json:"recentHistory"`
	CommonErrors  []string      `json:"commonErrors"`
	AccuracyRate  float64       `json:"accuracyRate"`
	Confidence    string        `json:"averageConfidence"`

	totalRounds      int
	correctRounds    int
	confidenceSum    int
	confidenceRounds int
}

// RecordRound appends one round's outcome. History is capped at the last
// three rounds. When a correct round carried a corrected sentence that
// differs from the recognized text, the pair is remembered as a common
// recognition error.
func (c *ConversationContext) RecordRound(r RoundRecord) {
	c.RecentHistory = append(c.RecentHistory, r)
	if len(c.RecentHistory) > historyLimit {
		c.RecentHistory = c.RecentHistory[len(c.RecentHistory)-historyLimit:]
	}

	if r.Correct && r.Corrected != "" && r.Corrected != r.Recognized {
		c.CommonErrors = append(c.CommonErrors, fmt.Sprintf("%s->%s", r.Recognized, r.Corrected))
		if len(c.CommonErrors) > commonErrorLimit {
			c.CommonErrors = c.CommonErrors[len(c.CommonErrors)-commonErrorLimit:]
		}
	}

	c.totalRounds++
	if r.Correct {
		c.correctRounds++
	}
	c.AccuracyRate = float64(c.correctRounds) / float64(c.totalRounds)

	if score := confidenceScore(r.Confidence); score > 0 {
		c.confidenceSum += score
		c.confidenceRounds++
		c.Confidence = confidenceLevel(float64(c.confidenceSum) / float64(c.confidenceRounds))
	}
}

// Empty reports whether the context carries nothing worth telling the model.
func (c *ConversationContext) Empty() bool {
	return c == nil || (len(c.RecentHistory) == 0 && len(c.CommonErrors) == 0)
}

// Fingerprint digests the context's judgment-relevant parts into a short
// stable string for cache keying. Contexts that would produce the same
// prompt block share a fingerprint.
func (c *ConversationContext) Fingerprint() string {
	if c.Empty() {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "h%d|e%s|a%.3f|c%s", len(c.RecentHistory), strings.Join(c.CommonErrors, ","), c.AccuracyRate, c.Confidence)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}
