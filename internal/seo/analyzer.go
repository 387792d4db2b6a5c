// Package seo aggregates text metrics into a single post health score.
package seo

import (
	"regexp"
	"strings"

	"content-radar/internal/textmetrics"
)

// Report is the per-post SEO summary shown on the dashboard.
type Report struct {
	Score           int                `json:"score"`
	WordCount       int                `json:"word_count"`
	HeadingCount    int                `json:"heading_count"`
	InternalLinks   int                `json:"internal_links"`
	ExternalLinks   int                `json:"external_links"`
	ImageCount      int                `json:"image_count"`
	KeywordDensity  map[string]float64 `json:"keyword_density,omitempty"`
	Recommendations []string           `json:"recommendations"`
}

const (
	baseScore          = 50
	maxRecommendations = 5
)

// Analyzer wraps a metrics analyzer with threshold scoring.
type Analyzer struct {
	metrics *textmetrics.Analyzer
}

// NewAnalyzer creates an Analyzer on top of the shared metrics analyzer.
func NewAnalyzer(metrics *textmetrics.Analyzer) *Analyzer {
	return &Analyzer{metrics: metrics}
}

// Analyze scores content from a base of 50 with fixed threshold bonuses,
// clamped to 100. Keyword density is occurrences per 100 words.
func (a *Analyzer) Analyze(content string, keywords []string) Report {
	m := a.metrics.Analyze(content)

	report := Report{
		WordCount:     m.WordCount,
		HeadingCount:  len(m.Headings),
		InternalLinks: len(m.InternalLinks),
		ExternalLinks: len(m.ExternalLinks),
		ImageCount:    m.ImageCount,
	}

	score := baseScore
	if m.WordCount >= 1500 {
		score += 15
	}
	if m.WordCount >= 2000 {
		score += 5
	}
	if report.HeadingCount >= 3 {
		score += 10
	}
	if report.ImageCount >= 3 {
		score += 10
	}
	if report.InternalLinks >= 3 {
		score += 10
	}
	if report.ExternalLinks >= 5 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	report.Score = score

	if len(keywords) > 0 {
		report.KeywordDensity = keywordDensity(content, m.WordCount, keywords)
	}

	report.Recommendations = recommend(report)
	return report
}

func keywordDensity(content string, words int, keywords []string) map[string]float64 {
	density := make(map[string]float64, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if words == 0 {
			density[kw] = 0
			continue
		}
		pattern := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(kw))
		occurrences := len(pattern.FindAllString(content, -1))
		density[kw] = float64(occurrences) / (float64(words) / 100)
	}
	return density
}

// recommend runs the threshold checks in a fixed order and keeps the first
// five that trigger.
func recommend(r Report) []string {
	recs := []string{}
	add := func(msg string) {
		if len(recs) < maxRecommendations {
			recs = append(recs, msg)
		}
	}

	if r.WordCount < 1500 {
		add("Expand the post beyond 1500 words")
	}
	if r.HeadingCount < 3 {
		add("Break the content up with at least 3 headings")
	}
	if r.ImageCount < 3 {
		add("Add images or diagrams (3 or more)")
	}
	if r.InternalLinks < 3 {
		add("Link to at least 3 related posts")
	}
	if r.ExternalLinks < 5 {
		add("Cite more external sources (5 or more)")
	}
	if r.WordCount >= 1500 && r.WordCount < 2000 {
		add("Pillar pages perform best above 2000 words")
	}
	return recs
}
