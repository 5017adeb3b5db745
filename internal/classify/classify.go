package classify

import (
	"strings"
	"time"

	"github.com/safemind/go-crisis-alerts/internal/models"
)

type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

type Result struct {
	Tier  Tier
	Score float64
}

// Classifier turns free-form report text into a risk tier and score. The
// keyword implementation below is a deliberately crude heuristic; a trained
// model can be swapped in behind this interface without touching the pipeline.
type Classifier interface {
	Classify(text string) (Result, error)
}

var highKeywords = []string{
	"danger", "help", "emergency", "bleeding", "unconscious",
	"fire", "accident", "violence", "weapon", "injured",
	"suicide", "kill", "attack",
}

var mediumKeywords = []string{
	"worried", "concern", "unsafe", "scared",
	"threat", "fear", "problem",
}

var tierScores = map[Tier]float64{
	TierHigh:   0.9,
	TierMedium: 0.5,
	TierLow:    0.1,
}

// KeywordClassifier does case-insensitive substring matching against fixed
// vocabularies. Empty input is the lowest tier, never an error.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (k *KeywordClassifier) Classify(text string) (Result, error) {
	if text == "" {
		return Result{Tier: TierLow, Score: 0.0}, nil
	}

	lower := strings.ToLower(text)

	for _, word := range highKeywords {
		if strings.Contains(lower, word) {
			return Result{Tier: TierHigh, Score: tierScores[TierHigh]}, nil
		}
	}
	for _, word := range mediumKeywords {
		if strings.Contains(lower, word) {
			return Result{Tier: TierMedium, Score: tierScores[TierMedium]}, nil
		}
	}

	return Result{Tier: TierLow, Score: tierScores[TierLow]}, nil
}

// distressKeywords is the check-in re-evaluation vocabulary: words in a
// follow-up response that indicate continued crisis.
var distressKeywords = []string{
	"worse", "harm", "suicide", "emergency", "crisis",
	"danger", "urgent", "help", "dying",
}

// ContainsDistress reports whether a check-in response indicates the person
// is still in crisis.
func ContainsDistress(response string) bool {
	if response == "" {
		return false
	}
	lower := strings.ToLower(response)
	for _, word := range distressKeywords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// SeverityForScore maps a risk score to severity and dispatch priority.
func SeverityForScore(score float64) (models.Severity, int) {
	switch {
	case score >= 0.8:
		return models.SeverityCritical, 1
	case score >= 0.6:
		return models.SeverityHigh, 2
	default:
		return models.SeverityMedium, 3
	}
}

var followUpDelays = map[int]time.Duration{
	1: 15 * time.Minute,
	2: 60 * time.Minute,
	3: 240 * time.Minute,
}

// FollowUpDelay returns how long after report creation the automated check-in
// is scheduled, by dispatch priority. Unknown priorities get the longest delay.
func FollowUpDelay(priority int) time.Duration {
	if d, ok := followUpDelays[priority]; ok {
		return d
	}
	return followUpDelays[3]
}
