// Package linking produces internal-linking suggestions by pairwise post
// similarity: title token overlap, shared tags and shared category.
package linking

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"content-radar/internal/model"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Suggestion is one ranked candidate link from source to target.
type Suggestion struct {
	SourceSlug  string  `json:"source_slug"`
	SourceTitle string  `json:"source_title"`
	TargetSlug  string  `json:"target_slug"`
	TargetTitle string  `json:"target_title"`
	Relevance   float64 `json:"relevance"`
	Reason      string  `json:"reason"`
}

const (
	titleWeight    = 0.5
	tagWeight      = 0.3
	categoryWeight = 0.2
	// The category indicator arrives pre-weighted at 0.3 and is then
	// multiplied by categoryWeight again, so it contributes at most 0.06.
	// Kept as-is pending a decision on the intended weighting.
	categoryIndicator = 0.3

	minRelevance   = 0.15
	maxSuggestions = 5
	minTokenLength = 3
)

// Engine scores candidate links between posts.
type Engine struct{}

// NewEngine creates an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// SuggestFor ranks the candidate pool against one target post and returns up
// to five suggestions with relevance above the floor, best first.
func (e *Engine) SuggestFor(source model.Post, pool []model.Post) []Suggestion {
	sourceTokens := tokenize(source.Title)
	results := make([]Suggestion, 0, len(pool))

	for _, candidate := range pool {
		if candidate.Slug == source.Slug {
			continue
		}

		titleSim := jaccard(sourceTokens, tokenize(candidate.Title))
		overlap, shared := tagOverlap(source.Tags, candidate.Tags)
		category := 0.0
		if source.Category != "" && source.Category == candidate.Category {
			category = categoryIndicator
		}

		relevance := titleWeight*titleSim + tagWeight*overlap + categoryWeight*category
		if relevance <= minRelevance {
			continue
		}

		results = append(results, Suggestion{
			SourceSlug:  source.Slug,
			SourceTitle: source.Title,
			TargetSlug:  candidate.Slug,
			TargetTitle: candidate.Title,
			Relevance:   relevance,
			Reason:      reason(shared, category > 0),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	if len(results) > maxSuggestions {
		results = results[:maxSuggestions]
	}
	return results
}

// SuggestAll runs every post against every other post and returns the
// flattened result set sorted by relevance. Quadratic in post count; fine for
// the corpus sizes a publication actually has.
func (e *Engine) SuggestAll(posts []model.Post) []Suggestion {
	all := make([]Suggestion, 0, len(posts))
	for i := range posts {
		all = append(all, e.SuggestFor(posts[i], posts)...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Relevance > all[j].Relevance
	})
	return all
}

func reason(sharedTags []string, sameCategory bool) string {
	switch {
	case len(sharedTags) > 0:
		return fmt.Sprintf("shares tags: %s", strings.Join(sharedTags, ", "))
	case sameCategory:
		return "same category"
	default:
		return "similar topic"
	}
}

var diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// tokenize lowercases, strips diacritics and keeps tokens longer than three
// characters.
func tokenize(title string) map[string]struct{} {
	folded, _, err := transform.String(diacriticFold, strings.ToLower(title))
	if err != nil {
		folded = strings.ToLower(title)
	}
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if len([]rune(tok)) > minTokenLength {
			set[tok] = struct{}{}
		}
	}
	return set
}

// jaccard is |intersection| / |union|, zero when either set is empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// tagOverlap is |shared| / max(|a|, |b|), zero when both are empty. The
// measure is symmetric in its arguments.
func tagOverlap(a, b []string) (float64, []string) {
	if len(a) == 0 && len(b) == 0 {
		return 0, nil
	}
	setA := make(map[string]struct{}, len(a))
	for _, tag := range a {
		setA[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}
	shared := []string{}
	seen := make(map[string]struct{})
	for _, tag := range b {
		key := strings.ToLower(strings.TrimSpace(tag))
		if _, dup := seen[key]; dup {
			continue
		}
		if _, ok := setA[key]; ok {
			shared = append(shared, tag)
			seen[key] = struct{}{}
		}
	}
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	if denom == 0 {
		return 0, nil
	}
	return float64(len(shared)) / float64(denom), shared
}
