package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"content-radar/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	tmp := t.TempDir()
	store, err := NewStore(filepath.Join(tmp, "content.db"))
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestStorePostCRUD(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	author := &model.Author{Name: "Dana"}
	if err := store.CreateAuthor(ctx, author); err != nil {
		t.Fatalf("CreateAuthor error: %v", err)
	}

	post := &model.Post{
		Title:       "What Is Bitcoin",
		Slug:        "what-is-bitcoin",
		Content:     "Bitcoin is a decentralized digital currency.",
		Tags:        []string{"bitcoin", "basics"},
		Category:    "bitcoin",
		AuthorID:    author.ID,
		Status:      model.PostStatusPublished,
		PublishedAt: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	if err := store.CreatePost(ctx, post); err != nil {
		t.Fatalf("CreatePost error: %v", err)
	}

	got, err := store.GetPost(ctx, "what-is-bitcoin")
	if err != nil {
		t.Fatalf("GetPost error: %v", err)
	}
	if got.Author.Name != "Dana" {
		t.Fatalf("expected preloaded author, got %+v", got.Author)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "bitcoin" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}

	update := *post
	update.ID = 0
	update.Title = "What Is Bitcoin, Really"
	if err := store.UpdatePost(ctx, "what-is-bitcoin", &update); err != nil {
		t.Fatalf("UpdatePost error: %v", err)
	}
	got, err = store.GetPost(ctx, "what-is-bitcoin")
	if err != nil {
		t.Fatalf("GetPost after update error: %v", err)
	}
	if got.Title != "What Is Bitcoin, Really" {
		t.Fatalf("update not persisted, title = %q", got.Title)
	}

	update.Slug = "what-is-bitcoin-really"
	if err := store.UpdatePost(ctx, "what-is-bitcoin", &update); err != nil {
		t.Fatalf("UpdatePost rename error: %v", err)
	}
	if _, err := store.GetPost(ctx, "what-is-bitcoin"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected old slug gone after rename, got %v", err)
	}
	renamed, err := store.GetPost(ctx, "what-is-bitcoin-really")
	if err != nil {
		t.Fatalf("GetPost after rename error: %v", err)
	}
	if renamed.Title != "What Is Bitcoin, Really" {
		t.Fatalf("rename lost fields, title = %q", renamed.Title)
	}
	if err := store.UpdatePost(ctx, "no-such-slug", &update); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for unknown slug, got %v", err)
	}

	if err := store.DeletePost(ctx, "what-is-bitcoin-really"); err != nil {
		t.Fatalf("DeletePost error: %v", err)
	}
	if _, err := store.GetPost(ctx, "what-is-bitcoin-really"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows after delete, got %v", err)
	}
	if err := store.DeletePost(ctx, "what-is-bitcoin-really"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows on second delete, got %v", err)
	}
}

func TestStoreListPostFilters(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	posts := []model.Post{
		{Title: "Ethereum Gas Explained", Slug: "eth-gas", Content: "gas fees", Category: "ethereum", Status: model.PostStatusPublished},
		{Title: "Bitcoin Halving", Slug: "btc-halving", Content: "supply schedule", Category: "bitcoin", Status: model.PostStatusPublished},
		{Title: "Draft Notes", Slug: "draft-notes", Content: "wip", Category: "bitcoin", Status: model.PostStatusDraft},
	}
	for i := range posts {
		if err := store.CreatePost(ctx, &posts[i]); err != nil {
			t.Fatalf("CreatePost error: %v", err)
		}
	}

	published, err := store.ListPosts(ctx, PostQuery{Status: model.PostStatusPublished})
	if err != nil {
		t.Fatalf("ListPosts error: %v", err)
	}
	if len(published) != 2 {
		t.Fatalf("expected 2 published posts, got %d", len(published))
	}

	bitcoin, err := store.ListPosts(ctx, PostQuery{Category: "bitcoin"})
	if err != nil {
		t.Fatalf("ListPosts by category error: %v", err)
	}
	if len(bitcoin) != 2 {
		t.Fatalf("expected 2 bitcoin posts, got %d", len(bitcoin))
	}

	found, err := store.ListPosts(ctx, PostQuery{Search: "halving"})
	if err != nil {
		t.Fatalf("ListPosts search error: %v", err)
	}
	if len(found) != 1 || found[0].Slug != "btc-halving" {
		t.Fatalf("unexpected search result: %+v", found)
	}

	total, err := store.CountPosts(ctx, PostQuery{Category: "bitcoin"})
	if err != nil {
		t.Fatalf("CountPosts error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected count 2, got %d", total)
	}
}

func TestStoreApprovedCommentsNesting(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	parent := &model.Comment{
		PostSlug:    "what-is-bitcoin",
		AuthorName:  "Alice",
		AuthorEmail: "alice@example.com",
		Content:     "Great explainer.",
		Status:      model.CommentApproved,
	}
	if err := store.CreateComment(ctx, parent); err != nil {
		t.Fatalf("CreateComment error: %v", err)
	}

	approvedReply := &model.Comment{
		PostSlug:    "what-is-bitcoin",
		ParentID:    &parent.ID,
		AuthorName:  "Bob",
		AuthorEmail: "bob@example.com",
		Content:     "Agreed.",
		Status:      model.CommentApproved,
	}
	pendingReply := &model.Comment{
		PostSlug:    "what-is-bitcoin",
		ParentID:    &parent.ID,
		AuthorName:  "Carol",
		AuthorEmail: "carol@example.com",
		Content:     "Waiting for review.",
		Status:      model.CommentPending,
	}
	for _, c := range []*model.Comment{approvedReply, pendingReply} {
		if err := store.CreateComment(ctx, c); err != nil {
			t.Fatalf("CreateComment reply error: %v", err)
		}
	}

	comments, err := store.ApprovedComments(ctx, "what-is-bitcoin")
	if err != nil {
		t.Fatalf("ApprovedComments error: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("expected 1 top-level comment, got %d", len(comments))
	}
	if len(comments[0].Replies) != 1 || comments[0].Replies[0].AuthorName != "Bob" {
		t.Fatalf("expected only the approved reply, got %+v", comments[0].Replies)
	}
}

func TestStoreDeleteCommentWithReplies(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	parent := &model.Comment{PostSlug: "p", AuthorName: "A", AuthorEmail: "a@example.com", Content: "top", Status: model.CommentApproved}
	if err := store.CreateComment(ctx, parent); err != nil {
		t.Fatalf("CreateComment error: %v", err)
	}
	reply := &model.Comment{PostSlug: "p", ParentID: &parent.ID, AuthorName: "B", AuthorEmail: "b@example.com", Content: "reply", Status: model.CommentApproved}
	if err := store.CreateComment(ctx, reply); err != nil {
		t.Fatalf("CreateComment reply error: %v", err)
	}

	if err := store.DeleteCommentWithReplies(ctx, parent.ID); err != nil {
		t.Fatalf("DeleteCommentWithReplies error: %v", err)
	}

	remaining, err := store.ListComments(ctx, CommentQuery{})
	if err != nil {
		t.Fatalf("ListComments error: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no comments left, got %d", len(remaining))
	}

	if err := store.DeleteCommentWithReplies(ctx, parent.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for missing comment, got %v", err)
	}
}

func TestStoreCountRecentComments(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c := &model.Comment{
			PostSlug:    "p",
			AuthorName:  "A",
			AuthorEmail: "a@example.com",
			Content:     "hello",
			Status:      model.CommentPending,
			IPAddress:   "10.0.0.1",
		}
		if err := store.CreateComment(ctx, c); err != nil {
			t.Fatalf("CreateComment error: %v", err)
		}
	}

	since := time.Now().Add(-time.Hour)
	byIP, err := store.CountRecentComments(ctx, "10.0.0.1", "other@example.com", since)
	if err != nil {
		t.Fatalf("CountRecentComments error: %v", err)
	}
	if byIP != 3 {
		t.Fatalf("expected 3 comments by IP, got %d", byIP)
	}

	byEmail, err := store.CountRecentComments(ctx, "10.9.9.9", "a@example.com", since)
	if err != nil {
		t.Fatalf("CountRecentComments by email error: %v", err)
	}
	if byEmail != 3 {
		t.Fatalf("expected 3 comments by email, got %d", byEmail)
	}

	none, err := store.CountRecentComments(ctx, "10.0.0.1", "a@example.com", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CountRecentComments future window error: %v", err)
	}
	if none != 0 {
		t.Fatalf("expected 0 comments in future window, got %d", none)
	}
}

func TestStoreUpsertSearchStats(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	first := []model.SearchStat{
		{Date: "2026-01-10", Path: "/posts/what-is-bitcoin", Clicks: 10, Impressions: 200, CTR: 0.05, Position: 4.2},
		{Date: "2026-01-10", Path: "/posts/eth-gas", Clicks: 3, Impressions: 90, CTR: 0.033, Position: 8.1},
	}
	created, err := store.UpsertSearchStats(ctx, first)
	if err != nil {
		t.Fatalf("UpsertSearchStats error: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 created rows, got %d", created)
	}

	second := []model.SearchStat{
		{Date: "2026-01-10", Path: "/posts/what-is-bitcoin", Clicks: 14, Impressions: 250, CTR: 0.056, Position: 3.9},
		{Date: "2026-01-10", Path: "/posts/btc-halving", Clicks: 1, Impressions: 40, CTR: 0.025, Position: 12.0},
	}
	created, err = store.UpsertSearchStats(ctx, second)
	if err != nil {
		t.Fatalf("UpsertSearchStats second pass error: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 new row on second pass, got %d", created)
	}

	stats, err := store.ListSearchStats(ctx, "2026-01-10")
	if err != nil {
		t.Fatalf("ListSearchStats error: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("expected 3 rows for date, got %d", len(stats))
	}
	if stats[0].Path != "/posts/what-is-bitcoin" || stats[0].Clicks != 14 {
		t.Fatalf("expected updated top row, got %+v", stats[0])
	}
}

func TestStoreSessionRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user := &model.User{Email: "admin@example.com", PasswordHash: "hash", Roles: []string{"admin"}}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	sess := &model.Session{
		Token:     "tok-123",
		UserID:    user.ID,
		Roles:     []string{"admin"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}

	got, err := store.GetSession(ctx, "tok-123")
	if err != nil {
		t.Fatalf("GetSession error: %v", err)
	}
	if got.UserID != user.ID || len(got.Roles) != 1 || got.Roles[0] != "admin" {
		t.Fatalf("unexpected session: %+v", got)
	}

	if _, err := store.GetSession(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for unknown token, got %v", err)
	}
}
