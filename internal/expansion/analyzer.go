// Package expansion flags under-length posts and suggests topic-specific
// additions.
package expansion

import (
	"sort"
	"strings"

	"content-radar/internal/model"
	"content-radar/internal/textmetrics"
)

// Priority orders expansion work.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Suggestion describes one under-length post and what to add.
type Suggestion struct {
	Slug            string   `json:"slug"`
	Title           string   `json:"title"`
	WordCount       int      `json:"word_count"`
	TargetWordCount int      `json:"target_word_count"`
	WordGap         int      `json:"word_gap"`
	Priority        Priority `json:"priority"`
	Suggestions     []string `json:"suggestions"`
}

// Config carries per-category suggestion tables.
type Config struct {
	Topics map[string][]string `yaml:"topics" json:"topics"`
}

// Analyzer classifies posts by word count against fixed targets.
type Analyzer struct {
	topics map[string][]string
}

var defaultTopics = map[string][]string{
	"bitcoin": {
		"Add a section on how miners secure the network",
		"Explain the halving schedule with concrete dates",
		"Compare self-custody options for holding BTC",
	},
	"ethereum": {
		"Cover gas fees and how to estimate them",
		"Explain the difference between L1 and L2 transactions",
		"Add a walkthrough of a simple smart-contract interaction",
	},
	"defi": {
		"Explain impermanent loss with a worked example",
		"Compare lending rates across major protocols",
		"Add a section on smart-contract risk",
	},
	"trading": {
		"Add a glossary of order types",
		"Explain position sizing with numbers",
		"Cover common chart patterns with annotated examples",
	},
	"security": {
		"Add a step-by-step seed phrase backup guide",
		"Cover common phishing patterns with screenshots",
		"Explain hardware wallet setup",
	},
}

var genericTopics = []string{
	"Expand the introduction with background for newcomers",
	"Add a frequently-asked-questions section",
	"Include concrete examples with numbers",
}

const (
	minHealthyWords  = 1500
	highCutoffWords  = 800
	mediumCutoff     = 1200
	highTargetWords  = 2000
	otherTargetWords = 1500
	maxSuggestions   = 3
)

// NewAnalyzer builds an Analyzer; missing config tables fall back to the
// built-in ones.
func NewAnalyzer(cfg Config) *Analyzer {
	topics := make(map[string][]string, len(cfg.Topics))
	for key, list := range cfg.Topics {
		topics[strings.ToLower(strings.TrimSpace(key))] = list
	}
	if len(topics) == 0 {
		topics = defaultTopics
	}
	return &Analyzer{topics: topics}
}

// Analyze returns nil when the post already meets the word target, otherwise
// a prioritized suggestion.
func (a *Analyzer) Analyze(post model.Post) *Suggestion {
	words := textmetrics.WordCount(post.Content)
	if words >= minHealthyWords {
		return nil
	}

	priority := PriorityLow
	target := otherTargetWords
	switch {
	case words < highCutoffWords:
		priority = PriorityHigh
		target = highTargetWords
	case words < mediumCutoff:
		priority = PriorityMedium
	}

	return &Suggestion{
		Slug:            post.Slug,
		Title:           post.Title,
		WordCount:       words,
		TargetWordCount: target,
		WordGap:         target - words,
		Priority:        priority,
		Suggestions:     a.topicSuggestions(post.Category),
	}
}

// AnalyzeCorpus scores every post and sorts the results by priority, then by
// descending word gap. The sort is stable so equal entries keep corpus order.
func (a *Analyzer) AnalyzeCorpus(posts []model.Post) []Suggestion {
	results := make([]Suggestion, 0, len(posts))
	for _, post := range posts {
		if s := a.Analyze(post); s != nil {
			results = append(results, *s)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := priorityRank(results[i].Priority), priorityRank(results[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return results[i].WordGap > results[j].WordGap
	})
	return results
}

func (a *Analyzer) topicSuggestions(category string) []string {
	list, ok := a.topics[strings.ToLower(strings.TrimSpace(category))]
	if !ok || len(list) == 0 {
		list = genericTopics
	}
	if len(list) > maxSuggestions {
		list = list[:maxSuggestions]
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}
