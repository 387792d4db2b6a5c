package model

import (
	"time"

	"gorm.io/datatypes"
)

// CommentStatus tracks the moderation lifecycle of a comment. Comments enter
// as PENDING or SPAM and only move to APPROVED/REJECTED/SPAM through explicit
// moderator action; there is no automatic re-scoring or expiry.
type CommentStatus string

const (
	CommentPending  CommentStatus = "PENDING"
	CommentApproved CommentStatus = "APPROVED"
	CommentRejected CommentStatus = "REJECTED"
	CommentSpam     CommentStatus = "SPAM"
)

// Comment is a reader comment on a post. SpamScore is computed once at
// creation and never recalculated.
type Comment struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	PostSlug    string        `gorm:"index" json:"post_slug"`
	ParentID    *uint         `gorm:"index" json:"parent_id,omitempty"`
	AuthorName  string        `json:"author_name"`
	AuthorEmail string        `gorm:"index" json:"author_email"`
	Content     string        `json:"content"`
	Status      CommentStatus `gorm:"index" json:"status"`
	SpamScore   float64       `json:"spam_score"`
	IPAddress   string        `gorm:"index" json:"-"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// Replies is populated by the store for public listing; one level deep.
	Replies []Comment `gorm:"-" json:"replies,omitempty"`
}

// AuditSeverity grades audit log entries.
type AuditSeverity string

const (
	SeverityLow  AuditSeverity = "LOW"
	SeverityHigh AuditSeverity = "HIGH"
)

// AuditEntry records a moderation-relevant event, e.g. a blocked spam comment.
type AuditEntry struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Action    string            `json:"action"`
	Email     string            `json:"email"`
	IPAddress string            `json:"ip_address"`
	Reason    string            `json:"reason"`
	Severity  AuditSeverity     `json:"severity"`
	Details   datatypes.JSONMap `json:"details"`
	CreatedAt time.Time         `json:"created_at"`
}
