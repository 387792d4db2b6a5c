// Package subscription validates and stores newsletter signups.
package subscription

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"content-radar/internal/model"
)

// Store provides signup persistence.
type Store interface {
	CreateSubscription(ctx context.Context, sub *model.Subscription) error
}

// Config lists the categories a signup may subscribe to. Empty means any
// category is accepted as given.
type Config struct {
	Categories []string `yaml:"categories" json:"categories"`
}

// Request is the public signup payload.
type Request struct {
	Email      string   `json:"email"`
	Categories []string `json:"categories"`
}

// Service validates signups and writes them to the store.
type Service struct {
	store      Store
	categories map[string]string
}

// NewService creates the signup service.
func NewService(store Store, cfg Config) *Service {
	lookup := make(map[string]string)
	for _, c := range cfg.Categories {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			lookup[strings.ToLower(trimmed)] = trimmed
		}
	}
	return &Service{store: store, categories: lookup}
}

// Create validates the request and stores the signup. An empty category list
// means the subscriber wants everything.
func (s *Service) Create(ctx context.Context, req Request) (model.Subscription, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return model.Subscription{}, fmt.Errorf("email required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return model.Subscription{}, fmt.Errorf("invalid email: %w", err)
	}

	categories := make([]string, 0, len(req.Categories))
	seen := make(map[string]struct{}, len(req.Categories))
	for _, c := range req.Categories {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" {
			continue
		}
		canonical, ok := s.categories[key]
		if !ok && len(s.categories) > 0 {
			return model.Subscription{}, fmt.Errorf("unknown category %s", c)
		}
		if canonical == "" {
			canonical = key
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		categories = append(categories, canonical)
	}

	sub := model.Subscription{
		Email:      strings.ToLower(email),
		Categories: categories,
	}
	if err := s.store.CreateSubscription(ctx, &sub); err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}
