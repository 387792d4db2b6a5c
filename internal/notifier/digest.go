package notifier

import (
	"context"
	"fmt"
	"strings"

	"content-radar/internal/model"
)

// SubscriptionStore lists newsletter signups.
type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
}

// DigestNotifier mails newly published posts to subscribers, honoring each
// signup's category preferences. Signups with no categories receive
// everything.
type DigestNotifier struct {
	store    SubscriptionStore
	emailCfg EmailConfig
	sender   EmailSender
	siteURL  string
}

// NewDigestNotifier creates an instance. A nil sender falls back to SMTP.
func NewDigestNotifier(store SubscriptionStore, cfg EmailConfig, sender EmailSender, siteURL string) *DigestNotifier {
	if sender == nil {
		sender = NewSMTPClient(cfg)
	}
	if cfg.Subject == "" {
		cfg.Subject = "New posts this week"
	}
	return &DigestNotifier{store: store, emailCfg: cfg, sender: sender, siteURL: strings.TrimRight(siteURL, "/")}
}

// Notify sends each subscriber the subset of posts matching their categories.
func (n *DigestNotifier) Notify(ctx context.Context, posts []model.Post) error {
	if len(posts) == 0 || n.store == nil {
		return nil
	}

	subs, err := n.store.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	for _, sub := range subs {
		matches := filterPostsByCategories(posts, sub.Categories)
		if len(matches) == 0 {
			continue
		}
		msg := EmailMessage{
			From:    n.emailCfg.From,
			To:      []string{sub.Email},
			Subject: n.emailCfg.Subject,
			Body:    n.buildDigestBody(matches),
		}
		if err := n.sender.Send(ctx, msg); err != nil {
			return fmt.Errorf("send digest to %s: %w", sub.Email, err)
		}
	}
	return nil
}

func filterPostsByCategories(posts []model.Post, categories []string) []model.Post {
	if len(categories) == 0 {
		return posts
	}
	wanted := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		wanted[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	filtered := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if _, ok := wanted[strings.ToLower(p.Category)]; ok {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func (n *DigestNotifier) buildDigestBody(posts []model.Post) string {
	var b strings.Builder
	b.WriteString("New posts:\n")
	for _, p := range posts {
		b.WriteString(fmt.Sprintf("- %s %s/posts/%s\n", p.Title, n.siteURL, p.Slug))
	}
	return b.String()
}
