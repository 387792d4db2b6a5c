// Package aiscore rates how easily answer engines can quote a post: a short
// quotable opening, FAQ coverage, question-led structure, author authority
// and fact-dense sentences.
package aiscore

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"content-radar/internal/model"
	"content-radar/internal/textmetrics"
)

// Config holds the category FAQ map and scoring windows.
type Config struct {
	FAQ              map[string]FAQItem `yaml:"faq" json:"faq"`
	RecentWindowDays int                `yaml:"recent_window_days" json:"recent_window_days"`
}

// FAQItem is one canned question/answer pair attached by category or tag.
type FAQItem struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

// Result is the full score breakdown for one post.
type Result struct {
	Overall          int      `json:"overall"`
	QuickAnswer      string   `json:"quick_answer,omitempty"`
	HasQuickAnswer   bool     `json:"has_quick_answer"`
	HasFAQSchema     bool     `json:"has_faq_schema"`
	CitableSentences int      `json:"citable_sentences"`
	Recommendations  []string `json:"recommendations"`
}

// Scorer computes answer-engine friendliness scores.
type Scorer struct {
	faq        map[string]FAQItem
	recentDays int
	now        func() time.Time
}

var defaultFAQ = map[string]FAQItem{
	"bitcoin": {
		Question: "What is Bitcoin?",
		Answer:   "Bitcoin is a decentralized digital currency secured by proof-of-work mining, with a fixed supply of 21 million coins.",
	},
	"ethereum": {
		Question: "What is Ethereum used for?",
		Answer:   "Ethereum is a programmable blockchain that runs smart contracts, powering DeFi apps, NFTs and token issuance.",
	},
	"defi": {
		Question: "What is DeFi?",
		Answer:   "DeFi (decentralized finance) replaces banks and brokers with smart contracts for lending, trading and earning yield.",
	},
	"nft": {
		Question: "What is an NFT?",
		Answer:   "An NFT is a unique blockchain token proving ownership of a digital or physical item.",
	},
	"trading": {
		Question: "How do I start trading crypto?",
		Answer:   "Open an account on a regulated exchange, fund it, and start with small positions while learning order types and fees.",
	},
	"security": {
		Question: "How do I keep crypto safe?",
		Answer:   "Use a hardware wallet for long-term holdings, enable two-factor authentication, and never share your seed phrase.",
	},
	"wallets": {
		Question: "What is a crypto wallet?",
		Answer:   "A wallet stores the keys that control your coins; hardware wallets keep those keys offline.",
	},
	"regulation": {
		Question: "Is cryptocurrency legal?",
		Answer:   "Legality varies by country; most jurisdictions permit holding crypto but regulate exchanges and taxation.",
	},
}

var questionWords = []string{"what ", "how ", "why "}

// NewScorer builds a Scorer; an empty FAQ map falls back to the built-in one
// and the recency window defaults to 90 days.
func NewScorer(cfg Config) *Scorer {
	faq := make(map[string]FAQItem, len(cfg.FAQ))
	for key, item := range cfg.FAQ {
		faq[strings.ToLower(strings.TrimSpace(key))] = item
	}
	if len(faq) == 0 {
		faq = defaultFAQ
	}
	days := cfg.RecentWindowDays
	if days <= 0 {
		days = 90
	}
	return &Scorer{faq: faq, recentDays: days, now: time.Now}
}

// Score computes the 0-100 overall score with recommendations. Sub-scores are
// independent; the overall is their clamped sum.
func (s *Scorer) Score(post model.Post) Result {
	res := Result{}
	total := 0

	answer := QuickAnswer(post.Content)
	answerWords := textmetrics.WordCount(answer)
	res.QuickAnswer = answer
	res.HasQuickAnswer = answer != ""
	switch {
	case answer == "":
	case answerWords >= 30 && answerWords <= 70:
		total += 20
	default:
		total += 15
	}

	res.HasFAQSchema = len(post.Tags) > 0
	if res.HasFAQSchema {
		total += 25
	}

	structured := s.structureScore(post.Content)
	total += structured

	authority := 0
	if strings.TrimSpace(post.Author.Bio) != "" {
		authority += 8
	}
	if strings.TrimSpace(post.Author.Image) != "" {
		authority += 6
	}
	if s.now().Sub(post.PublishedAt) <= time.Duration(s.recentDays)*24*time.Hour {
		authority += 6
	}
	total += authority

	res.CitableSentences = citableSentences(post.Content)
	citability := res.CitableSentences * 2
	if citability > 15 {
		citability = 15
	}
	total += citability

	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	res.Overall = total

	res.Recommendations = s.recommend(post, res, answerWords, structured, citability)
	return res
}

// QuickAnswer extracts the first paragraph longer than 20 characters that is
// not a heading or an image, strips emphasis markers and truncates it to 300
// characters. It returns "" when no paragraph qualifies.
func QuickAnswer(content string) string {
	for _, para := range splitParagraphs(content) {
		if len(para) <= 20 {
			continue
		}
		if strings.HasPrefix(para, "#") || strings.HasPrefix(para, "!") {
			continue
		}
		answer := strings.TrimSpace(stripEmphasis(para))
		if runes := []rune(answer); len(runes) > 300 {
			answer = string(runes[:300]) + "..."
		}
		return answer
	}
	return ""
}

func (s *Scorer) structureScore(content string) int {
	headings := len(textmetrics.Headings(content))
	questions := 0
	for _, sentence := range splitSentences(content) {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}
		if strings.HasSuffix(trimmed, "?") || containsQuestionWord(trimmed) {
			questions++
		}
	}
	if headings >= 3 && questions >= 2 {
		return 20
	}
	return 10 // baseline credit, never zero
}

func containsQuestionWord(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, qw := range questionWords {
		if strings.Contains(lower, qw) {
			return true
		}
	}
	return false
}

// citableSentences counts sentences of 8-25 words that carry a digit or a
// capitalized word; a proxy for fact-dense, quotable content.
func citableSentences(content string) int {
	count := 0
	for _, sentence := range splitSentences(content) {
		words := strings.Fields(sentence)
		if len(words) < 8 || len(words) > 25 {
			continue
		}
		if strings.ContainsFunc(sentence, unicode.IsDigit) || hasCapitalizedWord(words) {
			count++
		}
	}
	return count
}

func hasCapitalizedWord(words []string) bool {
	for _, w := range words {
		r := []rune(w)
		if len(r) > 0 && unicode.IsUpper(r[0]) {
			return true
		}
	}
	return false
}

func (s *Scorer) recommend(post model.Post, res Result, answerWords, structured, citability int) []string {
	recs := []string{}
	if !res.HasQuickAnswer {
		recs = append(recs, "Add a 40-60 word opening paragraph that directly answers the main question")
	} else if answerWords < 30 || answerWords > 70 {
		recs = append(recs, "Tighten the opening paragraph to 30-70 words so answer engines can quote it whole")
	}
	if len(post.Tags) == 0 {
		recs = append(recs, "Tag the post so FAQ entries can be attached to it")
	}
	if structured == 10 {
		recs = append(recs, "Add more headings and question-style subheadings (what/how/why)")
	}
	if strings.TrimSpace(post.Author.Bio) == "" {
		recs = append(recs, "Ensure the author has a bio; it feeds authority signals")
	}
	if strings.TrimSpace(post.Author.Image) == "" {
		recs = append(recs, "Add an author photo")
	}
	if citability < 15 {
		recs = append(recs, "Add fact-dense sentences with concrete figures or named entities")
	}
	return recs
}

// FAQForPost collects up to 3 FAQ items: the category entry first, then tag
// matches, skipping duplicate questions.
func (s *Scorer) FAQForPost(post model.Post) []FAQItem {
	items := make([]FAQItem, 0, 3)
	seen := make(map[string]struct{}, 3)

	appendItem := func(item FAQItem) {
		if len(items) >= 3 {
			return
		}
		if _, dup := seen[item.Question]; dup {
			return
		}
		seen[item.Question] = struct{}{}
		items = append(items, item)
	}

	if item, ok := s.faq[strings.ToLower(strings.TrimSpace(post.Category))]; ok {
		appendItem(item)
	}
	for _, tag := range post.Tags {
		if len(items) >= 3 {
			break
		}
		if item, ok := s.faq[strings.ToLower(strings.TrimSpace(tag))]; ok {
			appendItem(item)
		}
	}
	return items
}

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	emphasisChars  = strings.NewReplacer("*", "", "_", "", "`", "", "~", "")
)

func splitParagraphs(content string) []string {
	parts := paragraphSplit.Split(content, -1)
	paras := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paras = append(paras, trimmed)
		}
	}
	return paras
}

func stripEmphasis(text string) string {
	return emphasisChars.Replace(text)
}

// splitSentences breaks content on sentence terminators and newlines, keeping
// the terminator attached so question detection can see it.
func splitSentences(content string) []string {
	sentences := []string{}
	var b strings.Builder
	for _, r := range content {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
