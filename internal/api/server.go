// Package api exposes the HTTP surface of the content radar.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"content-radar/internal/aiscore"
	"content-radar/internal/auth"
	"content-radar/internal/insights"
	"content-radar/internal/model"
	"content-radar/internal/seo"
	"content-radar/internal/spam"
	"content-radar/internal/storage"
	"content-radar/internal/subscription"
	"content-radar/internal/textmetrics"
)

// Store covers the persistence calls the handlers need.
type Store interface {
	GetPost(ctx context.Context, slug string) (*model.Post, error)
	ListPosts(ctx context.Context, q storage.PostQuery) ([]model.Post, error)
	CountPosts(ctx context.Context, q storage.PostQuery) (int64, error)
	CreatePost(ctx context.Context, post *model.Post) error
	UpdatePost(ctx context.Context, slug string, post *model.Post) error
	DeletePost(ctx context.Context, slug string) error

	CreateAuthor(ctx context.Context, author *model.Author) error
	ListAuthors(ctx context.Context) ([]model.Author, error)
	UpdateAuthor(ctx context.Context, author *model.Author) error
	DeleteAuthor(ctx context.Context, id uint) error

	CreateCategory(ctx context.Context, cat *model.Category) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	DeleteCategory(ctx context.Context, slug string) error

	ApprovedComments(ctx context.Context, postSlug string) ([]model.Comment, error)
	ListComments(ctx context.Context, q storage.CommentQuery) ([]model.Comment, error)
	UpdateCommentStatus(ctx context.Context, id uint, status model.CommentStatus) error
	DeleteCommentWithReplies(ctx context.Context, id uint) error

	ListSearchStats(ctx context.Context, date string) ([]model.SearchStat, error)
}

// CommentService runs the submission pipeline.
type CommentService interface {
	Submit(ctx context.Context, sub spam.Submission) (*model.Comment, error)
}

// SubscriptionService stores newsletter signups.
type SubscriptionService interface {
	Create(ctx context.Context, req subscription.Request) (model.Subscription, error)
}

// AuthService issues and validates sessions.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*model.Session, error)
	Session(ctx context.Context, token string) (*model.Session, error)
}

// InsightsService aggregates the content dashboards.
type InsightsService interface {
	PostScores(ctx context.Context) ([]insights.PostScore, error)
	ContentReport(ctx context.Context) (insights.Report, error)
}

// Scheduler triggers an out-of-band analytics refresh.
type Scheduler interface {
	RunOnce(ctx context.Context) (int, error)
}

// Deps wires the handler dependencies. Scorer, Metrics and SEO must be set;
// the services may be nil, disabling their routes.
type Deps struct {
	Store         Store
	Comments      CommentService
	Subscriptions SubscriptionService
	Auth          AuthService
	Insights      InsightsService
	Scheduler     Scheduler
	Metrics       *textmetrics.Analyzer
	Scorer        *aiscore.Scorer
	SEO           *seo.Analyzer
	Logger        *log.Logger
}

// PostDetail is a published post enriched for rendering.
type PostDetail struct {
	Post    model.Post          `json:"post"`
	Metrics textmetrics.Metrics `json:"metrics"`
	SEO     seo.Report          `json:"seo"`
	AIScore aiscore.Result      `json:"ai_score"`
	FAQ     []aiscore.FAQItem   `json:"faq"`
}

// NewHandler builds the HTTP mux.
func NewHandler(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = log.New(os.Stdout, "[api] ", log.LstdFlags)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/posts", d.handleListPosts)
	mux.HandleFunc("GET /api/posts/{slug}", d.handleGetPost)
	mux.HandleFunc("POST /api/comments", d.handleSubmitComment)
	mux.HandleFunc("GET /api/comments", d.handleApprovedComments)
	mux.HandleFunc("POST /api/subscriptions", d.handleSubscribe)
	mux.HandleFunc("POST /api/login", d.handleLogin)

	admin := d.requireAdmin

	mux.Handle("GET /api/admin/ai-scores", admin(d.handleAIScores))
	mux.Handle("GET /api/admin/insights", admin(d.handleInsights))
	mux.Handle("GET /api/admin/comments", admin(d.handleListComments))
	mux.Handle("PATCH /api/admin/comments/{id}", admin(d.handleModerateComment))
	mux.Handle("DELETE /api/admin/comments/{id}", admin(d.handleDeleteComment))

	mux.Handle("POST /api/admin/posts", admin(d.handleCreatePost))
	mux.Handle("PUT /api/admin/posts/{slug}", admin(d.handleUpdatePost))
	mux.Handle("DELETE /api/admin/posts/{slug}", admin(d.handleDeletePost))

	mux.Handle("GET /api/admin/authors", admin(d.handleListAuthors))
	mux.Handle("POST /api/admin/authors", admin(d.handleCreateAuthor))
	mux.Handle("PUT /api/admin/authors/{id}", admin(d.handleUpdateAuthor))
	mux.Handle("DELETE /api/admin/authors/{id}", admin(d.handleDeleteAuthor))

	mux.Handle("GET /api/admin/categories", admin(d.handleListCategories))
	mux.Handle("POST /api/admin/categories", admin(d.handleCreateCategory))
	mux.Handle("DELETE /api/admin/categories/{slug}", admin(d.handleDeleteCategory))

	mux.Handle("POST /api/admin/refresh", admin(d.handleRefresh))
	mux.Handle("GET /api/admin/analytics", admin(d.handleAnalytics))

	return mux
}

// --- public routes ---

func (d Deps) handleListPosts(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			if v > 100 {
				v = 100
			}
			limit = v
		}
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	q := storage.PostQuery{
		Status:   model.PostStatusPublished,
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}

	posts, err := d.Store.ListPosts(r.Context(), q)
	if err != nil {
		d.writeError(w, err)
		return
	}
	total, err := d.Store.CountPosts(r.Context(), q)
	if err != nil {
		d.writeError(w, err)
		return
	}

	w.Header().Set("X-Page", strconv.Itoa(page))
	w.Header().Set("X-Limit", strconv.Itoa(limit))
	w.Header().Set("X-Total", strconv.FormatInt(total, 10))
	writeJSON(w, http.StatusOK, posts)
}

func (d Deps) handleGetPost(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	post, err := d.Store.GetPost(r.Context(), slug)
	if err != nil {
		d.writeError(w, err)
		return
	}
	if post.Status != model.PostStatusPublished {
		d.writeError(w, sql.ErrNoRows)
		return
	}

	detail := PostDetail{
		Post:    *post,
		Metrics: d.Metrics.Analyze(post.Content),
		SEO:     d.SEO.Analyze(post.Content, post.Tags),
		AIScore: d.Scorer.Score(*post),
		FAQ:     d.Scorer.FAQForPost(*post),
	}
	writeJSON(w, http.StatusOK, detail)
}

func (d Deps) handleSubmitComment(w http.ResponseWriter, r *http.Request) {
	var sub spam.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	sub.IPAddress = clientIP(r)

	comment, err := d.Comments.Submit(r.Context(), sub)
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         comment.ID,
		"status":     comment.Status,
		"spam_score": comment.SpamScore,
	})
}

func (d Deps) handleApprovedComments(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("post")
	if slug == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "post parameter required"})
		return
	}
	comments, err := d.Store.ApprovedComments(r.Context(), slug)
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (d Deps) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if d.Subscriptions == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "subscriptions disabled"})
		return
	}
	var req subscription.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	sub, err := d.Subscriptions.Create(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (d Deps) handleLogin(w http.ResponseWriter, r *http.Request) {
	if d.Auth == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "auth disabled"})
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	sess, err := d.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
	})
}

// --- admin routes ---

func (d Deps) requireAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.Auth == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "auth disabled"})
			return
		}
		token := bearerToken(r)
		sess, err := d.Auth.Session(r.Context(), token)
		if err != nil {
			d.writeError(w, err)
			return
		}
		if sess == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		if !auth.HasRole(sess, "admin") {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin role required"})
			return
		}
		next(w, r)
	})
}

func (d Deps) handleAIScores(w http.ResponseWriter, r *http.Request) {
	scores, err := d.Insights.PostScores(r.Context())
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (d Deps) handleInsights(w http.ResponseWriter, r *http.Request) {
	report, err := d.Insights.ContentReport(r.Context())
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (d Deps) handleListComments(w http.ResponseWriter, r *http.Request) {
	q := storage.CommentQuery{
		Status: model.CommentStatus(r.URL.Query().Get("status")),
		Limit:  50,
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			q.Limit = v
		}
	}
	comments, err := d.Store.ListComments(r.Context(), q)
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

var moderationStatuses = map[model.CommentStatus]struct{}{
	model.CommentApproved: {},
	model.CommentRejected: {},
	model.CommentSpam:     {},
}

func (d Deps) handleModerateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status model.CommentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if _, ok := moderationStatuses[req.Status]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be APPROVED, REJECTED or SPAM"})
		return
	}
	if err := d.Store.UpdateCommentStatus(r.Context(), id, req.Status); err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

func (d Deps) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := d.Store.DeleteCommentWithReplies(r.Context(), id); err != nil {
		d.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d Deps) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var post model.Post
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if post.Title == "" || post.Slug == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and slug required"})
		return
	}
	if post.Status == "" {
		post.Status = model.PostStatusDraft
	}
	if err := d.Store.CreatePost(r.Context(), &post); err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (d Deps) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var post model.Post
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	slug := r.PathValue("slug")
	if post.Slug == "" {
		post.Slug = slug
	}
	if err := d.Store.UpdatePost(r.Context(), slug, &post); err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (d Deps) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := d.Store.DeletePost(r.Context(), r.PathValue("slug")); err != nil {
		d.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d Deps) handleListAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := d.Store.ListAuthors(r.Context())
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authors)
}

func (d Deps) handleCreateAuthor(w http.ResponseWriter, r *http.Request) {
	var author model.Author
	if err := json.NewDecoder(r.Body).Decode(&author); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if author.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name required"})
		return
	}
	if err := d.Store.CreateAuthor(r.Context(), &author); err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, author)
}

func (d Deps) handleUpdateAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var author model.Author
	if err := json.NewDecoder(r.Body).Decode(&author); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	author.ID = id
	if err := d.Store.UpdateAuthor(r.Context(), &author); err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, author)
}

func (d Deps) handleDeleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := d.Store.DeleteAuthor(r.Context(), id); err != nil {
		d.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d Deps) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := d.Store.ListCategories(r.Context())
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (d Deps) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var cat model.Category
	if err := json.NewDecoder(r.Body).Decode(&cat); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if cat.Name == "" || cat.Slug == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and slug required"})
		return
	}
	if err := d.Store.CreateCategory(r.Context(), &cat); err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (d Deps) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := d.Store.DeleteCategory(r.Context(), r.PathValue("slug")); err != nil {
		d.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d Deps) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if d.Scheduler == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "analytics disabled"})
		return
	}
	created, err := d.Scheduler.RunOnce(r.Context())
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

func (d Deps) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date parameter required"})
		return
	}
	stats, err := d.Store.ListSearchStats(r.Context(), date)
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- helpers ---

func (d Deps) writeError(w http.ResponseWriter, err error) {
	var ve *spam.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, spam.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	case errors.Is(err, sql.ErrNoRows):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		d.Logger.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
