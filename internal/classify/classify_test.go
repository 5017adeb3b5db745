package classify

import (
	"testing"
	"time"

	"github.com/safemind/go-crisis-alerts/internal/models"
)

func TestKeywordClassifier_Tiers(t *testing.T) {
	k := NewKeywordClassifier()

	tests := []struct {
		name string
		text string
		tier Tier
	}{
		{"high keyword", "I am in danger and need help", TierHigh},
		{"high keyword mixed case", "There was an ACCIDENT on the highway", TierHigh},
		{"medium keyword", "I am worried about my neighbor", TierMedium},
		{"no keywords", "just checking in, all quiet here", TierLow},
		{"empty text", "", TierLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := k.Classify(tt.text)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if res.Tier != tt.tier {
				t.Errorf("expected tier %s, got %s", tt.tier, res.Tier)
			}
		})
	}
}

func TestKeywordClassifier_EmptyScore(t *testing.T) {
	k := NewKeywordClassifier()

	res, err := k.Classify("")
	if err != nil {
		t.Fatalf("Classify failed on empty input: %v", err)
	}
	if res.Score != 0.0 {
		t.Errorf("expected score 0.0 for empty input, got %f", res.Score)
	}
}

func TestSeverityForScore(t *testing.T) {
	tests := []struct {
		score    float64
		severity models.Severity
		priority int
	}{
		{0.85, models.SeverityCritical, 1},
		{0.8, models.SeverityCritical, 1},
		{0.65, models.SeverityHigh, 2},
		{0.6, models.SeverityHigh, 2},
		{0.3, models.SeverityMedium, 3},
		{0.0, models.SeverityMedium, 3},
	}

	for _, tt := range tests {
		sev, prio := SeverityForScore(tt.score)
		if sev != tt.severity || prio != tt.priority {
			t.Errorf("score %.2f: expected %s/%d, got %s/%d", tt.score, tt.severity, tt.priority, sev, prio)
		}
	}
}

func TestFollowUpDelay(t *testing.T) {
	tests := []struct {
		priority int
		delay    time.Duration
	}{
		{1, 15 * time.Minute},
		{2, 60 * time.Minute},
		{3, 240 * time.Minute},
		{99, 240 * time.Minute},
	}

	for _, tt := range tests {
		if got := FollowUpDelay(tt.priority); got != tt.delay {
			t.Errorf("priority %d: expected %s, got %s", tt.priority, tt.delay, got)
		}
	}
}

func TestContainsDistress(t *testing.T) {
	tests := []struct {
		response string
		want     bool
	}{
		{"I feel like suicide", true},
		{"things are getting WORSE", true},
		{"feeling better today", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ContainsDistress(tt.response); got != tt.want {
			t.Errorf("ContainsDistress(%q) = %v, want %v", tt.response, got, tt.want)
		}
	}
}
