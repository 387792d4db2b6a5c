// Package spam scores submitted comments and gates the public submission
// pipeline. Scores are computed once at creation time and stored; moderation
// never re-scores.
package spam

import (
	"strings"
	"unicode"
)

// ClassifierConfig lets deployments override the keyword list.
type ClassifierConfig struct {
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Classifier produces a 0-1 spam likelihood from independent weighted
// signals. Each signal adds to the sum; only the final clamp bounds it.
type Classifier struct {
	keywords []string
}

var defaultKeywords = []string{
	"viagra",
	"cialis",
	"casino",
	"lottery",
	"guaranteed",
	"click here",
	"buy now",
	"free money",
	"make money fast",
	"work from home",
	"limited time offer",
	"act now",
	"winner",
	"congratulations",
	"double your",
	"risk free",
	"no obligation",
	"weight loss",
}

// NewClassifier builds a classifier, falling back to the built-in keyword
// list when the config provides none.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		keywords = append(keywords, kw)
	}
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	return &Classifier{keywords: keywords}
}

// Score rates content plus the submitter email, clamped to [0,1].
func (c *Classifier) Score(content, authorEmail string) float64 {
	score := 0.0
	lower := strings.ToLower(content)

	if len(content) < 5 {
		score += 0.5
	}
	if len(content) > 2000 {
		score += 0.3
	}

	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			score += 0.15
		}
	}

	links := strings.Count(lower, "http://") + strings.Count(lower, "https://")
	if links > 2 {
		score += 0.3
	}
	if links > 5 {
		score += 0.4
	}

	if len(content) > 20 {
		ratio := uppercaseRatio(content)
		if ratio > 0.3 {
			score += 0.15
		}
		if ratio > 0.5 {
			score += 0.25
		}
	}

	exclaims := strings.Count(content, "!")
	if exclaims > 3 {
		score += 0.1
	}
	if exclaims > 10 {
		score += 0.3
	}
	if strings.Count(content, "?") > 5 {
		score += 0.1
	}

	if hasRepeatedRun(content, 5) {
		score += 0.2
	}

	if suspiciousEmail(authorEmail) {
		score += 0.4
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

func uppercaseRatio(content string) float64 {
	runes := []rune(content)
	if len(runes) == 0 {
		return 0
	}
	upper := 0
	for _, r := range runes {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(len(runes))
}

// hasRepeatedRun reports whether any rune repeats at least n times in a row.
func hasRepeatedRun(content string, n int) bool {
	var prev rune
	run := 0
	for _, r := range content {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

func suspiciousEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	local, domain := email[:at], email[at+1:]
	for _, marker := range []string{"test", "fake"} {
		if strings.Contains(local, marker) || strings.Contains(domain, marker) {
			return true
		}
	}
	return false
}
