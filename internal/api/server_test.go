package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

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

func newTestHandler(store *fakeStore, comments CommentService, authSvc AuthService, ins InsightsService, sched Scheduler) http.Handler {
	metrics := textmetrics.New(textmetrics.Config{SiteDomain: "blog.example.com"})
	return NewHandler(Deps{
		Store:         store,
		Comments:      comments,
		Subscriptions: stubSubs{},
		Auth:          authSvc,
		Insights:      ins,
		Scheduler:     sched,
		Metrics:       metrics,
		Scorer:        aiscore.NewScorer(aiscore.Config{}),
		SEO:           seo.NewAnalyzer(metrics),
	})
}

func TestListPostsFiltersPublished(t *testing.T) {
	t.Parallel()

	store := &fakeStore{posts: []model.Post{{Slug: "btc", Status: model.PostStatusPublished}}}
	h := newTestHandler(store, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/posts?limit=5&category=bitcoin", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if store.lastQuery.Status != model.PostStatusPublished {
		t.Fatalf("expected published filter, got %q", store.lastQuery.Status)
	}
	if store.lastQuery.Category != "bitcoin" {
		t.Fatalf("expected category filter, got %q", store.lastQuery.Category)
	}
	if got := w.Header().Get("X-Total"); got != "1" {
		t.Fatalf("expected X-Total 1, got %q", got)
	}
}

func TestGetPostEnriched(t *testing.T) {
	t.Parallel()

	store := &fakeStore{posts: []model.Post{{
		Slug:     "what-is-bitcoin",
		Title:    "What Is Bitcoin",
		Content:  "# Intro\n\nBitcoin is a peer to peer digital currency that settles without banks and runs on a public ledger anyone can verify at any time for free today.",
		Category: "bitcoin",
		Status:   model.PostStatusPublished,
	}}}
	h := newTestHandler(store, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/what-is-bitcoin", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var detail PostDetail
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if detail.Metrics.WordCount == 0 {
		t.Fatalf("expected computed metrics")
	}
	if detail.SEO.Score == 0 {
		t.Fatalf("expected seo score")
	}
	if len(detail.FAQ) == 0 {
		t.Fatalf("expected faq items for bitcoin category")
	}
}

func TestGetPostHidesDrafts(t *testing.T) {
	t.Parallel()

	store := &fakeStore{posts: []model.Post{{Slug: "wip", Status: model.PostStatusDraft}}}
	h := newTestHandler(store, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/wip", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for draft, got %d", w.Code)
	}
}

func TestSubmitComment(t *testing.T) {
	t.Parallel()

	comments := &stubComments{comment: &model.Comment{ID: 9, Status: model.CommentPending, SpamScore: 0.3}}
	h := newTestHandler(&fakeStore{}, comments, nil, nil, nil)

	body := `{"author_name":"Alice","author_email":"alice@example.com","content":"Nice post","post_slug":"btc"}`
	req := httptest.NewRequest(http.MethodPost, "/api/comments", strings.NewReader(body))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if comments.last.IPAddress != "203.0.113.7" {
		t.Fatalf("expected forwarded IP, got %q", comments.last.IPAddress)
	}

	var resp struct {
		ID        uint                `json:"id"`
		Status    model.CommentStatus `json:"status"`
		SpamScore float64             `json:"spam_score"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 9 || resp.Status != model.CommentPending {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.SpamScore != 0.3 {
		t.Fatalf("expected spam score 0.3 in response, got %v", resp.SpamScore)
	}
}

func TestSubmitCommentErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &spam.ValidationError{Field: "author_email", Message: "invalid email format"}, http.StatusBadRequest},
		{"rate limited", spam.ErrRateLimited, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHandler(&fakeStore{}, &stubComments{err: tc.err}, nil, nil, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/comments", strings.NewReader(`{}`))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestApprovedCommentsRequiresPost(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&fakeStore{}, nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/comments", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without post param, got %d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	authSvc := &stubAuth{session: &model.Session{Token: "tok", Roles: []string{"admin"}, ExpiresAt: time.Now().Add(time.Hour)}}
	h := newTestHandler(&fakeStore{}, nil, authSvc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"admin@example.com","password":"pw"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	authSvc.loginErr = auth.ErrInvalidCredentials
	req = httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"admin@example.com","password":"bad"}`))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad credentials, got %d", w.Code)
	}
}

func TestAdminRoutesRequireSession(t *testing.T) {
	t.Parallel()

	authSvc := &stubAuth{}
	ins := &stubInsights{}
	h := newTestHandler(&fakeStore{}, nil, authSvc, ins, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/ai-scores", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	authSvc.session = &model.Session{Token: "tok", Roles: []string{"editor"}}
	req = httptest.NewRequest(http.MethodGet, "/api/admin/ai-scores", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without admin role, got %d", w.Code)
	}

	authSvc.session = &model.Session{Token: "tok", Roles: []string{"admin"}}
	req = httptest.NewRequest(http.MethodGet, "/api/admin/ai-scores", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", w.Code)
	}
	if ins.scoreCalls != 1 {
		t.Fatalf("expected insights called once, got %d", ins.scoreCalls)
	}
}

func TestModerateComment(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	authSvc := &stubAuth{session: &model.Session{Token: "tok", Roles: []string{"admin"}}}
	h := newTestHandler(store, nil, authSvc, nil, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/comments/3", strings.NewReader(`{"status":"APPROVED"}`))
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.lastStatus != model.CommentApproved || store.lastCommentID != 3 {
		t.Fatalf("unexpected moderation call: id=%d status=%q", store.lastCommentID, store.lastStatus)
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/admin/comments/3", strings.NewReader(`{"status":"PENDING"}`))
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for PENDING, got %d", w.Code)
	}
}

func TestUpdatePostKeyedByPathSlug(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	authSvc := &stubAuth{session: &model.Session{Token: "tok", Roles: []string{"admin"}}}
	h := newTestHandler(store, nil, authSvc, nil, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/posts/btc-halving", strings.NewReader(`{"title":"New Title"}`))
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.updatedSlug != "btc-halving" {
		t.Fatalf("expected update keyed by path slug, got %q", store.updatedSlug)
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	sched := &stubScheduler{created: 2}
	authSvc := &stubAuth{session: &model.Session{Token: "tok", Roles: []string{"admin"}}}
	h := newTestHandler(&fakeStore{}, nil, authSvc, nil, sched)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/refresh", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if sched.calls != 1 {
		t.Fatalf("expected scheduler called once, got %d", sched.calls)
	}
	if !strings.Contains(w.Body.String(), `"created":2`) {
		t.Fatalf("expected created count in body, got %s", w.Body.String())
	}
}

func TestAnalyticsRequiresDate(t *testing.T) {
	t.Parallel()

	authSvc := &stubAuth{session: &model.Session{Token: "tok", Roles: []string{"admin"}}}
	h := newTestHandler(&fakeStore{}, nil, authSvc, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/analytics", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without date, got %d", w.Code)
	}
}

// --- stubs ---

type fakeStore struct {
	posts         []model.Post
	lastQuery     storage.PostQuery
	lastCommentID uint
	lastStatus    model.CommentStatus
	updatedSlug   string
}

func (s *fakeStore) GetPost(ctx context.Context, slug string) (*model.Post, error) {
	for i := range s.posts {
		if s.posts[i].Slug == slug {
			return &s.posts[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeStore) ListPosts(ctx context.Context, q storage.PostQuery) ([]model.Post, error) {
	s.lastQuery = q
	return s.posts, nil
}

func (s *fakeStore) CountPosts(ctx context.Context, q storage.PostQuery) (int64, error) {
	return int64(len(s.posts)), nil
}

func (s *fakeStore) CreatePost(ctx context.Context, post *model.Post) error { return nil }

func (s *fakeStore) UpdatePost(ctx context.Context, slug string, post *model.Post) error {
	s.updatedSlug = slug
	return nil
}

func (s *fakeStore) DeletePost(ctx context.Context, slug string) error { return nil }

func (s *fakeStore) CreateAuthor(ctx context.Context, author *model.Author) error { return nil }
func (s *fakeStore) ListAuthors(ctx context.Context) ([]model.Author, error)      { return nil, nil }
func (s *fakeStore) UpdateAuthor(ctx context.Context, author *model.Author) error { return nil }
func (s *fakeStore) DeleteAuthor(ctx context.Context, id uint) error              { return nil }

func (s *fakeStore) CreateCategory(ctx context.Context, cat *model.Category) error { return nil }
func (s *fakeStore) ListCategories(ctx context.Context) ([]model.Category, error)  { return nil, nil }
func (s *fakeStore) DeleteCategory(ctx context.Context, slug string) error         { return nil }

func (s *fakeStore) ApprovedComments(ctx context.Context, postSlug string) ([]model.Comment, error) {
	return nil, nil
}

func (s *fakeStore) ListComments(ctx context.Context, q storage.CommentQuery) ([]model.Comment, error) {
	return nil, nil
}

func (s *fakeStore) UpdateCommentStatus(ctx context.Context, id uint, status model.CommentStatus) error {
	s.lastCommentID = id
	s.lastStatus = status
	return nil
}

func (s *fakeStore) DeleteCommentWithReplies(ctx context.Context, id uint) error { return nil }

func (s *fakeStore) ListSearchStats(ctx context.Context, date string) ([]model.SearchStat, error) {
	return nil, nil
}

type stubComments struct {
	comment *model.Comment
	err     error
	last    spam.Submission
}

func (s *stubComments) Submit(ctx context.Context, sub spam.Submission) (*model.Comment, error) {
	s.last = sub
	if s.err != nil {
		return nil, s.err
	}
	return s.comment, nil
}

type stubSubs struct{}

func (stubSubs) Create(ctx context.Context, req subscription.Request) (model.Subscription, error) {
	return model.Subscription{Email: req.Email}, nil
}

type stubAuth struct {
	session  *model.Session
	loginErr error
}

func (s *stubAuth) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.session, nil
}

func (s *stubAuth) Session(ctx context.Context, token string) (*model.Session, error) {
	if s.session != nil && s.session.Token == token {
		return s.session, nil
	}
	return nil, nil
}

type stubInsights struct {
	scoreCalls int
}

func (s *stubInsights) PostScores(ctx context.Context) ([]insights.PostScore, error) {
	s.scoreCalls++
	return []insights.PostScore{}, nil
}

func (s *stubInsights) ContentReport(ctx context.Context) (insights.Report, error) {
	return insights.Report{}, nil
}

type stubScheduler struct {
	created int
	calls   int
}

func (s *stubScheduler) RunOnce(ctx context.Context) (int, error) {
	s.calls++
	return s.created, nil
}
