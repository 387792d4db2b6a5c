package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"content-radar/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps SQLite access for posts, authors, categories, comments, audit
// entries, sessions, subscriptions and search stats.
type Store struct {
	db *gorm.DB
}

// PostQuery filters paginated post listings.
type PostQuery struct {
	Status   model.PostStatus
	Category string
	Search   string
	Limit    int
	Offset   int
}

// CommentQuery filters the moderation comment listing.
type CommentQuery struct {
	Status model.CommentStatus
	Limit  int
	Offset int
}

// NewStore opens the database and migrates all tables.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Author{},
		&model.Category{},
		&model.Post{},
		&model.Comment{},
		&model.AuditEntry{},
		&model.User{},
		&model.Session{},
		&model.Subscription{},
		&model.SearchStat{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// --- posts ---

// CreatePost inserts a post. Slug collisions surface as a gorm error.
func (s *Store) CreatePost(ctx context.Context, post *model.Post) error {
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// UpdatePost saves editable post fields, addressed by the current slug. The
// post's Slug field may differ to rename.
func (s *Store) UpdatePost(ctx context.Context, slug string, post *model.Post) error {
	tx := s.db.WithContext(ctx).Model(&model.Post{}).Where("slug = ?", slug).Updates(map[string]any{
		"title":        post.Title,
		"slug":         post.Slug,
		"content":      post.Content,
		"tags":         post.Tags,
		"category":     post.Category,
		"author_id":    post.AuthorID,
		"status":       post.Status,
		"published_at": post.PublishedAt,
	})
	if tx.Error != nil {
		return fmt.Errorf("update post: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeletePost removes a post by slug.
func (s *Store) DeletePost(ctx context.Context, slug string) error {
	tx := s.db.WithContext(ctx).Where("slug = ?", slug).Delete(&model.Post{})
	if tx.Error != nil {
		return fmt.Errorf("delete post: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetPost fetches a post with its author by slug.
func (s *Store) GetPost(ctx context.Context, slug string) (*model.Post, error) {
	var post model.Post
	if err := s.db.WithContext(ctx).Preload("Author").First(&post, "slug = ?", slug).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

// ListPosts returns posts ordered by publish date, newest first.
func (s *Store) ListPosts(ctx context.Context, q PostQuery) ([]model.Post, error) {
	var posts []model.Post
	if q.Offset < 0 {
		q.Offset = 0
	}

	query := applyPostFilters(s.db.WithContext(ctx).Model(&model.Post{}), q).
		Preload("Author").
		Order("published_at DESC")
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	if err := query.Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// CountPosts returns the number of posts matching the filters.
func (s *Store) CountPosts(ctx context.Context, q PostQuery) (int64, error) {
	var total int64
	query := applyPostFilters(s.db.WithContext(ctx).Model(&model.Post{}), q)
	if err := query.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return total, nil
}

func applyPostFilters(db *gorm.DB, q PostQuery) *gorm.DB {
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.Category != "" {
		db = db.Where("category = ?", q.Category)
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		like := "%" + term + "%"
		db = db.Where("title LIKE ? OR content LIKE ?", like, like)
	}
	return db
}

// --- authors ---

// CreateAuthor inserts an author.
func (s *Store) CreateAuthor(ctx context.Context, author *model.Author) error {
	if err := s.db.WithContext(ctx).Create(author).Error; err != nil {
		return fmt.Errorf("create author: %w", err)
	}
	return nil
}

// ListAuthors returns all authors ordered by name.
func (s *Store) ListAuthors(ctx context.Context) ([]model.Author, error) {
	var authors []model.Author
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&authors).Error; err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return authors, nil
}

// UpdateAuthor saves author fields by primary key.
func (s *Store) UpdateAuthor(ctx context.Context, author *model.Author) error {
	tx := s.db.WithContext(ctx).Model(&model.Author{}).Where("id = ?", author.ID).Updates(map[string]any{
		"name":    author.Name,
		"bio":     author.Bio,
		"image":   author.Image,
		"twitter": author.Twitter,
	})
	if tx.Error != nil {
		return fmt.Errorf("update author: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteAuthor removes an author by id.
func (s *Store) DeleteAuthor(ctx context.Context, id uint) error {
	tx := s.db.WithContext(ctx).Delete(&model.Author{}, id)
	if tx.Error != nil {
		return fmt.Errorf("delete author: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- categories ---

// CreateCategory inserts a category.
func (s *Store) CreateCategory(ctx context.Context, cat *model.Category) error {
	if err := s.db.WithContext(ctx).Create(cat).Error; err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// DeleteCategory removes a category by slug.
func (s *Store) DeleteCategory(ctx context.Context, slug string) error {
	tx := s.db.WithContext(ctx).Where("slug = ?", slug).Delete(&model.Category{})
	if tx.Error != nil {
		return fmt.Errorf("delete category: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- comments ---

// CreateComment inserts a comment. Spam scoring happens before this call and
// the stored score is never touched again.
func (s *Store) CreateComment(ctx context.Context, c *model.Comment) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// ApprovedComments returns approved top-level comments for a post, oldest
// first, each with one level of approved replies nested.
func (s *Store) ApprovedComments(ctx context.Context, postSlug string) ([]model.Comment, error) {
	var top []model.Comment
	if err := s.db.WithContext(ctx).
		Where("post_slug = ? AND status = ? AND parent_id IS NULL", postSlug, model.CommentApproved).
		Order("created_at ASC").
		Find(&top).Error; err != nil {
		return nil, fmt.Errorf("list approved comments: %w", err)
	}
	if len(top) == 0 {
		return top, nil
	}

	ids := make([]uint, 0, len(top))
	for _, c := range top {
		ids = append(ids, c.ID)
	}

	var replies []model.Comment
	if err := s.db.WithContext(ctx).
		Where("parent_id IN ? AND status = ?", ids, model.CommentApproved).
		Order("created_at ASC").
		Find(&replies).Error; err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}

	byParent := make(map[uint][]model.Comment, len(replies))
	for _, r := range replies {
		byParent[*r.ParentID] = append(byParent[*r.ParentID], r)
	}
	for i := range top {
		top[i].Replies = byParent[top[i].ID]
	}
	return top, nil
}

// ListComments returns comments for moderation, newest first.
func (s *Store) ListComments(ctx context.Context, q CommentQuery) ([]model.Comment, error) {
	var comments []model.Comment
	query := s.db.WithContext(ctx).Model(&model.Comment{}).Order("created_at DESC")
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if err := query.Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// UpdateCommentStatus applies a moderation decision. The spam score column is
// deliberately left alone.
func (s *Store) UpdateCommentStatus(ctx context.Context, id uint, status model.CommentStatus) error {
	tx := s.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", id).Update("status", status)
	if tx.Error != nil {
		return fmt.Errorf("update comment status: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteCommentWithReplies hard-deletes a comment and any comments that
// reference it as parent.
func (s *Store) DeleteCommentWithReplies(ctx context.Context, id uint) error {
	if err := s.db.WithContext(ctx).Where("parent_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
		return fmt.Errorf("delete replies: %w", err)
	}
	tx := s.db.WithContext(ctx).Delete(&model.Comment{}, id)
	if tx.Error != nil {
		return fmt.Errorf("delete comment: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountRecentComments counts comments from the same IP or email created at or
// after the given instant. Used by the submission rate limiter.
func (s *Store) CountRecentComments(ctx context.Context, ip, email string, since time.Time) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Comment{}).
		Where("(ip_address = ? OR author_email = ?) AND created_at >= ?", ip, email, since).
		Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count recent comments: %w", err)
	}
	return total, nil
}

// --- audit ---

// AppendAudit writes an audit log entry.
func (s *Store) AppendAudit(ctx context.Context, entry *model.AuditEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAudit returns recent audit entries, newest first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []model.AuditEntry
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return entries, nil
}

// --- users & sessions ---

// CreateUser inserts a dashboard account.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail fetches a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// CreateSession stores an issued session token.
func (s *Store) CreateSession(ctx context.Context, sess *model.Session) error {
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession fetches a session by token, or sql.ErrNoRows when unknown.
func (s *Store) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	if err := s.db.WithContext(ctx).First(&sess, "token = ?", token).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// --- subscriptions ---

// CreateSubscription stores a newsletter signup.
func (s *Store) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// ListSubscriptions returns all newsletter signups.
func (s *Store) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	var subs []model.Subscription
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

// --- search stats ---

// UpsertSearchStats writes daily search metrics, updating rows that already
// exist for the same date and path. Returns the number of new rows.
func (s *Store) UpsertSearchStats(ctx context.Context, stats []model.SearchStat) (int, error) {
	if len(stats) == 0 {
		return 0, nil
	}

	created := 0
	for i := range stats {
		var existing int64
		if err := s.db.WithContext(ctx).Model(&model.SearchStat{}).
			Where("date = ? AND path = ?", stats[i].Date, stats[i].Path).
			Count(&existing).Error; err != nil {
			return created, fmt.Errorf("query existing stats: %w", err)
		}
		if existing == 0 {
			created++
		}
	}

	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}, {Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"clicks", "impressions", "ctr", "position", "updated_at"}),
	}).Create(&stats)
	if tx.Error != nil {
		return created, fmt.Errorf("upsert search stats: %w", tx.Error)
	}
	return created, nil
}

// ListSearchStats returns stats for one date ordered by clicks.
func (s *Store) ListSearchStats(ctx context.Context, date string) ([]model.SearchStat, error) {
	var stats []model.SearchStat
	if err := s.db.WithContext(ctx).
		Where("date = ?", date).
		Order("clicks DESC").
		Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("list search stats: %w", err)
	}
	return stats, nil
}
