// Package textmetrics derives structural metrics from markdown-like content.
// Every function is total: empty or malformed input yields empty or zero
// results, never an error.
package textmetrics

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Config carries the site identity used to classify links.
type Config struct {
	SiteDomain string `yaml:"site_domain" json:"site_domain"`
}

// Analyzer computes text metrics over post content.
type Analyzer struct {
	siteDomain string
}

// Heading is one markdown heading with its generated anchor id.
type Heading struct {
	Level  int    `json:"level"`
	Text   string `json:"text"`
	Anchor string `json:"anchor"`
}

// Link is one markdown link.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Metrics aggregates everything derived from a single content string.
type Metrics struct {
	WordCount     int       `json:"word_count"`
	ReadingTime   int       `json:"reading_time"`
	Headings      []Heading `json:"headings"`
	InternalLinks []Link    `json:"internal_links"`
	ExternalLinks []Link    `json:"external_links"`
	ImageCount    int       `json:"image_count"`
}

var (
	wordPattern    = regexp.MustCompile(`[-?a-zA-Z0-9_'"]+`)
	headingPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	linkPattern    = regexp.MustCompile(`(!?)\[([^\]]*)\]\(([^)]+)\)`)
	imagePattern   = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	anchorStrip    = regexp.MustCompile(`[^a-z0-9]+`)
	bulletStrip    = regexp.MustCompile(`(?m)^[ \t]*[-+*][ \t]+`)
	markerStrip    = strings.NewReplacer("*", " ", "_", " ", "~", " ", "`", " ", "#", " ", ">", " ")
)

// New creates an Analyzer. An empty site domain means only URLs starting
// with "/" count as internal.
func New(cfg Config) *Analyzer {
	return &Analyzer{siteDomain: strings.TrimSpace(cfg.SiteDomain)}
}

// Analyze runs every metric over the content in one call.
func (a *Analyzer) Analyze(content string) Metrics {
	words := WordCount(content)
	internal, external := a.Links(content)
	return Metrics{
		WordCount:     words,
		ReadingTime:   ReadingTime(words),
		Headings:      Headings(content),
		InternalLinks: internal,
		ExternalLinks: external,
		ImageCount:    ImageCount(content),
	}
}

// WordCount strips markdown markers and counts word tokens. List bullets are
// removed per line so a leading "-" never counts as a word; hyphens inside
// words are kept.
func WordCount(content string) int {
	if content == "" {
		return 0
	}
	plain := markerStrip.Replace(bulletStrip.ReplaceAllString(content, ""))
	return len(wordPattern.FindAllString(plain, -1))
}

// ReadingTime estimates minutes at 200 words per minute, never below 1.
func ReadingTime(words int) int {
	minutes := (words + 199) / 200
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Headings extracts markdown headings in document order. Duplicate heading
// text gets a numeric anchor suffix starting at 1.
func Headings(content string) []Heading {
	matches := headingPattern.FindAllStringSubmatch(content, -1)
	headings := make([]Heading, 0, len(matches))
	seen := make(map[string]int, len(matches))
	for _, m := range matches {
		text := strings.TrimSpace(m[2])
		anchor := slugify(text)
		if n, ok := seen[anchor]; ok {
			seen[anchor] = n + 1
			anchor = fmt.Sprintf("%s-%d", anchor, n)
		} else {
			seen[anchor] = 1
		}
		headings = append(headings, Heading{Level: len(m[1]), Text: text, Anchor: anchor})
	}
	return headings
}

// Links splits markdown links into internal and external lists. A URL is
// internal when it starts with "/" or contains the site domain; otherwise it
// is external when it starts with "http", and ignored when neither holds.
func (a *Analyzer) Links(content string) (internal, external []Link) {
	for _, m := range linkPattern.FindAllStringSubmatch(content, -1) {
		if m[1] == "!" {
			continue // image, not a link
		}
		link := Link{Text: m[2], URL: strings.TrimSpace(m[3])}
		switch {
		case strings.HasPrefix(link.URL, "/"):
			internal = append(internal, link)
		case a.siteDomain != "" && strings.Contains(link.URL, a.siteDomain):
			internal = append(internal, link)
		case strings.HasPrefix(link.URL, "http"):
			external = append(external, link)
		}
	}
	return internal, external
}

// ImageCount sums markdown image syntax and raw <img> tags. Raw tags are
// found with an HTML tokenizer so attribute noise does not matter.
func ImageCount(content string) int {
	count := len(imagePattern.FindAllString(content, -1))

	tokenizer := html.NewTokenizer(strings.NewReader(content))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, _ := tokenizer.TagName()
		if string(name) == "img" {
			count++
		}
	}
	return count
}

func slugify(text string) string {
	slug := anchorStrip.ReplaceAllString(strings.ToLower(text), "-")
	return strings.Trim(slug, "-")
}
