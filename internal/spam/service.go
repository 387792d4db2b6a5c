package spam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"content-radar/internal/model"

	"gorm.io/datatypes"
)

// Store persists comments and audit entries.
type Store interface {
	CreateComment(ctx context.Context, c *model.Comment) error
	AppendAudit(ctx context.Context, entry *model.AuditEntry) error
}

// Limiter gates submissions per IP/email.
type Limiter interface {
	Allowed(ctx context.Context, ip, email string) bool
}

// Alerter is notified when a submission is classified as spam.
type Alerter interface {
	Alert(ctx context.Context, alert Alert) error
}

// Alert describes a blocked spam submission for moderator notification.
type Alert struct {
	Email     string
	IPAddress string
	Reason    string
	Score     float64
}

// Submission is the public comment form payload. Website is the honeypot
// field; real users never fill it in.
type Submission struct {
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	Content     string `json:"content"`
	PostSlug    string `json:"post_slug"`
	Website     string `json:"website"`
	ParentID    *uint  `json:"parent_id,omitempty"`
	IPAddress   string `json:"-"`
}

// ValidationError reports a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrRateLimited signals too many submissions inside the window.
var ErrRateLimited = errors.New("too many comments, try again later")

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ServiceConfig tunes the submission pipeline.
type ServiceConfig struct {
	SpamThreshold float64 `yaml:"spam_threshold" json:"spam_threshold"`
}

// Service runs the sequential submission pipeline: honeypot, field
// validation, rate limit, scoring, persistence. The comment record is always
// created, even when classified as spam, so moderators retain visibility.
type Service struct {
	store      Store
	classifier *Classifier
	limiter    Limiter
	alerter    Alerter
	threshold  float64
	logger     *log.Logger
}

// NewService wires the pipeline. Alerter may be nil.
func NewService(store Store, classifier *Classifier, limiter Limiter, alerter Alerter, cfg ServiceConfig) *Service {
	threshold := cfg.SpamThreshold
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.7
	}
	return &Service{
		store:      store,
		classifier: classifier,
		limiter:    limiter,
		alerter:    alerter,
		threshold:  threshold,
		logger:     log.New(os.Stdout, "[comments] ", log.LstdFlags),
	}
}

// Submit validates and stores a comment, returning the created record with
// its status and spam score set.
func (s *Service) Submit(ctx context.Context, sub Submission) (*model.Comment, error) {
	if strings.TrimSpace(sub.Website) != "" {
		return nil, &ValidationError{Field: "website", Message: "invalid submission"}
	}
	if strings.TrimSpace(sub.AuthorName) == "" {
		return nil, &ValidationError{Field: "author_name", Message: "name is required"}
	}
	if strings.TrimSpace(sub.Content) == "" {
		return nil, &ValidationError{Field: "content", Message: "content is required"}
	}
	if strings.TrimSpace(sub.PostSlug) == "" {
		return nil, &ValidationError{Field: "post_slug", Message: "post slug is required"}
	}
	email := strings.TrimSpace(sub.AuthorEmail)
	if !emailPattern.MatchString(email) {
		return nil, &ValidationError{Field: "author_email", Message: "invalid email address"}
	}

	if !s.limiter.Allowed(ctx, sub.IPAddress, email) {
		return nil, ErrRateLimited
	}

	score := s.classifier.Score(sub.Content, email)
	status := model.CommentPending
	if score > s.threshold {
		status = model.CommentSpam
	}

	comment := &model.Comment{
		PostSlug:    sub.PostSlug,
		ParentID:    sub.ParentID,
		AuthorName:  strings.TrimSpace(sub.AuthorName),
		AuthorEmail: email,
		Content:     sub.Content,
		Status:      status,
		SpamScore:   score,
		IPAddress:   sub.IPAddress,
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	if status == model.CommentSpam {
		reason := fmt.Sprintf("spam score %.2f above threshold %.2f", score, s.threshold)
		entry := &model.AuditEntry{
			Action:    "comment_blocked",
			Email:     email,
			IPAddress: sub.IPAddress,
			Reason:    reason,
			Severity:  model.SeverityHigh,
			Details:   datatypes.JSONMap{"comment_id": comment.ID, "post_slug": sub.PostSlug, "score": score},
		}
		if err := s.store.AppendAudit(ctx, entry); err != nil {
			return nil, fmt.Errorf("append audit: %w", err)
		}
		if s.alerter != nil {
			alert := Alert{Email: email, IPAddress: sub.IPAddress, Reason: reason, Score: score}
			if err := s.alerter.Alert(ctx, alert); err != nil {
				s.logger.Printf("alert failed: %v", err)
			}
		}
	}

	return comment, nil
}
