package bizengine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database and provides all persistence for the blog:
// posts, the named entities they reference (authors, categories, tags) and
// the post/tag associations. The UNIQUE constraint on posts.slug is the
// correctness backstop behind the slug allocator's optimistic pre-check.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema setup.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL for concurrent read/write access, busy_timeout so writers wait
	// instead of returning SQLITE_BUSY, synchronous=NORMAL is safe with WAL.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS authors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    avatar TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    slug TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    slug TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    excerpt TEXT NOT NULL,
    author_id INTEGER NOT NULL REFERENCES authors(id),
    category_id INTEGER REFERENCES categories(id),
    featured_image TEXT NOT NULL DEFAULT '',
    meta_title TEXT NOT NULL DEFAULT '',
    meta_description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'draft',
    featured INTEGER NOT NULL DEFAULT 0,
    published_at TEXT,
    read_time INTEGER NOT NULL DEFAULT 1,
    views INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS post_tags (
    post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    tag_id INTEGER NOT NULL REFERENCES tags(id),
    PRIMARY KEY (post_id, tag_id)
);
CREATE INDEX IF NOT EXISTS idx_posts_status ON posts(status, published_at);
`)
	return err
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// slugTaken reports whether any post other than selfID holds slug.
// selfID 0 means no exclusion (creation path).
func (s *Store) slugTaken(ctx context.Context, slug string, selfID int64) (bool, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE slug = ? AND id != ?`, slug, selfID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("probe slug %q: %w", slug, err)
	}
	return n > 0, nil
}

// FindOrCreateAuthor resolves an author by exact display name, creating it
// with only the name populated when absent. Existing rows are never updated.
func (s *Store) FindOrCreateAuthor(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM authors WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup author: %w", err)
	}
	now := nowStamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO authors (name, created_at, updated_at) VALUES (?, ?, ?)`, name, now, now)
	if err != nil {
		return 0, fmt.Errorf("create author: %w", err)
	}
	return res.LastInsertId()
}

// FindOrCreateCategory resolves a category by exact name, creating it with a
// slug derived by the same normalization rule posts use.
func (s *Store) FindOrCreateCategory(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup category: %w", err)
	}
	slug := Slugify(name)
	if slug == "" {
		slug = "category"
	}
	now := nowStamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name, slug, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, slug, now, now)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	return res.LastInsertId()
}

// FindOrCreateTag resolves a tag by exact name, creating it when absent.
func (s *Store) FindOrCreateTag(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup tag: %w", err)
	}
	now := nowStamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (name, created_at, updated_at) VALUES (?, ?, ?)`, name, now, now)
	if err != nil {
		return 0, fmt.Errorf("create tag: %w", err)
	}
	return res.LastInsertId()
}

// TagPost associates a tag with a post. Re-adding an existing pair is a no-op.
func (s *Store) TagPost(ctx context.Context, postID, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO post_tags (post_id, tag_id) VALUES (?, ?)`, postID, tagID)
	if err != nil {
		return fmt.Errorf("tag post: %w", err)
	}
	return nil
}

// ClearPostTags removes every tag association for a post (update path; the
// tags themselves are never deleted).
func (s *Store) ClearPostTags(ctx context.Context, postID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = ?`, postID)
	if err != nil {
		return fmt.Errorf("clear post tags: %w", err)
	}
	return nil
}

// postRow carries the resolved, computed column values for an insert/update.
type postRow struct {
	Slug            string
	Title           string
	Content         string
	Excerpt         string
	AuthorID        int64
	CategoryID      sql.NullInt64
	FeaturedImage   string
	MetaTitle       string
	MetaDescription string
	Status          string
	Featured        bool
	PublishedAt     sql.NullString
	ReadTime        int
}

// InsertPost inserts a post row and returns the generated id. A slug UNIQUE
// violation is reported as ErrConflict so callers can distinguish the
// allocator race from other storage failures.
func (s *Store) InsertPost(ctx context.Context, r postRow) (int64, error) {
	now := nowStamp()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO posts (
    slug, title, content, excerpt, author_id, category_id,
    featured_image, meta_title, meta_description, status, featured,
    published_at, read_time, views, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		r.Slug, r.Title, r.Content, r.Excerpt, r.AuthorID, r.CategoryID,
		r.FeaturedImage, r.MetaTitle, r.MetaDescription, r.Status, boolToInt(r.Featured),
		r.PublishedAt, r.ReadTime, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %q", ErrConflict, r.Slug)
		}
		return 0, fmt.Errorf("insert post: %w", err)
	}
	return res.LastInsertId()
}

// UpdatePost rewrites a post row in place, preserving id, views and
// created_at.
func (s *Store) UpdatePost(ctx context.Context, id int64, r postRow) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE posts SET
    slug = ?, title = ?, content = ?, excerpt = ?, author_id = ?, category_id = ?,
    featured_image = ?, meta_title = ?, meta_description = ?, status = ?, featured = ?,
    published_at = ?, read_time = ?, updated_at = ?
WHERE id = ?`,
		r.Slug, r.Title, r.Content, r.Excerpt, r.AuthorID, r.CategoryID,
		r.FeaturedImage, r.MetaTitle, r.MetaDescription, r.Status, boolToInt(r.Featured),
		r.PublishedAt, r.ReadTime, nowStamp(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrConflict, r.Slug)
		}
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

const postColumns = `
    p.id, p.slug, p.title, p.excerpt, p.content, p.featured_image,
    p.meta_title, p.meta_description, p.status, p.featured,
    p.published_at, p.updated_at, p.read_time, p.views,
    c.id, c.name, c.slug, c.description,
    a.name, a.avatar`

const postFrom = `
FROM posts p
LEFT JOIN categories c ON p.category_id = c.id
LEFT JOIN authors a ON p.author_id = a.id`

func scanPost(row interface{ Scan(...any) error }) (Post, error) {
	var p Post
	var featured int
	var publishedAt, updatedAt sql.NullString
	var catID sql.NullInt64
	var catName, catSlug, catDesc, authorName, authorAvatar sql.NullString
	err := row.Scan(
		&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Content, &p.FeaturedImage,
		&p.metaTitle, &p.metaDescription, &p.Status, &featured,
		&publishedAt, &updatedAt, &p.ReadTime, &p.Views,
		&catID, &catName, &catSlug, &catDesc,
		&authorName, &authorAvatar,
	)
	if err != nil {
		return Post{}, err
	}
	p.Featured = featured == 1
	p.Published = p.Status == StatusPublished
	p.PublishedAt = publishedAt.String
	p.UpdatedAt = updatedAt.String
	if catID.Valid {
		p.Category = &Category{
			ID:          catID.Int64,
			Name:        catName.String,
			Slug:        catSlug.String,
			Description: catDesc.String,
		}
	}
	p.Author = Author{Name: authorName.String, Avatar: authorAvatar.String}
	p.SEO = SEO{MetaTitle: p.metaTitle, MetaDescription: p.metaDescription}
	if p.SEO.MetaTitle == "" {
		p.SEO.MetaTitle = p.Title
	}
	if p.SEO.MetaDescription == "" {
		p.SEO.MetaDescription = p.Excerpt
	}
	return p, nil
}

func (s *Store) postTags(ctx context.Context, postID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT t.name FROM tags t
JOIN post_tags pt ON t.id = pt.tag_id
WHERE pt.post_id = ?
ORDER BY t.name`, postID)
	if err != nil {
		return nil, fmt.Errorf("load post tags: %w", err)
	}
	defer rows.Close()
	tags := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

// GetPostByID returns a post with joined category, author and tags,
// regardless of status.
func (s *Store) GetPostByID(ctx context.Context, id int64) (Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+postColumns+postFrom+` WHERE p.id = ?`, id)
	p, err := scanPost(row)
	if err != nil {
		return Post{}, err
	}
	p.Tags, err = s.postTags(ctx, p.ID)
	return p, err
}

// GetPostBySlug returns a post by slug. Drafts are only visible when
// includeDrafts is set (admin path).
func (s *Store) GetPostBySlug(ctx context.Context, slug string, includeDrafts bool) (Post, error) {
	q := `SELECT` + postColumns + postFrom + ` WHERE p.slug = ?`
	if !includeDrafts {
		q += ` AND p.status = 'published'`
	}
	row := s.db.QueryRowContext(ctx, q, slug)
	p, err := scanPost(row)
	if err != nil {
		return Post{}, err
	}
	p.Tags, err = s.postTags(ctx, p.ID)
	return p, err
}

// ListPosts returns one page of posts matching opts, newest first, plus the
// total count for pagination. Content bodies are omitted from listings.
func (s *Store) ListPosts(ctx context.Context, opts ListOptions) (PostPage, error) {
	where := []string{"1=1"}
	args := []any{}
	if !opts.Drafts {
		where = append(where, "p.status = 'published'")
	}
	if opts.Category != "" {
		where = append(where, "c.slug = ?")
		args = append(args, opts.Category)
	}
	if opts.Search != "" {
		where = append(where, "(p.title LIKE ? OR p.excerpt LIKE ?)")
		pattern := "%" + opts.Search + "%"
		args = append(args, pattern, pattern)
	}
	if opts.Featured != nil {
		where = append(where, "p.featured = ?")
		args = append(args, boolToInt(*opts.Featured))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*)`+postFrom+` WHERE `+cond, args...).Scan(&total)
	if err != nil {
		return PostPage{}, fmt.Errorf("count posts: %w", err)
	}

	page, limit := opts.Page, opts.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	offset := (page - 1) * limit

	rows, err := s.db.QueryContext(ctx,
		`SELECT`+postColumns+postFrom+` WHERE `+cond+
			` ORDER BY COALESCE(p.published_at, p.created_at) DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return PostPage{}, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return PostPage{}, err
		}
		p.Content = ""
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return PostPage{}, err
	}
	for i := range posts {
		tags, err := s.postTags(ctx, posts[i].ID)
		if err != nil {
			return PostPage{}, err
		}
		posts[i].Tags = tags
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return PostPage{
		Posts: posts,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// RelatedPosts returns up to limit published posts that share the source
// post's category or at least one tag, newest first.
func (s *Store) RelatedPosts(ctx context.Context, slug string, limit int) ([]Post, error) {
	src, err := s.GetPostBySlug(ctx, slug, false)
	if err != nil {
		return nil, err
	}
	var catID int64 = -1
	if src.Category != nil {
		catID = src.Category.ID
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+postColumns+postFrom+`
WHERE p.status = 'published' AND p.id != ?
  AND (p.category_id = ?
       OR p.id IN (SELECT pt2.post_id FROM post_tags pt1
                   JOIN post_tags pt2 ON pt1.tag_id = pt2.tag_id
                   WHERE pt1.post_id = ?))
ORDER BY COALESCE(p.published_at, p.created_at) DESC
LIMIT ?`, src.ID, catID, src.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("related posts: %w", err)
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		p.Content = ""
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range posts {
		tags, err := s.postTags(ctx, posts[i].ID)
		if err != nil {
			return nil, err
		}
		posts[i].Tags = tags
	}
	return posts, nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	cats := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// IncrementViews bumps the view counter for a post. It reports false when no
// post holds the slug.
func (s *Store) IncrementViews(ctx context.Context, slug string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET views = views + 1 WHERE slug = ?`, slug)
	if err != nil {
		return false, fmt.Errorf("increment views: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeletePost removes a post by slug. Tag associations cascade; the named
// entities the post referenced are kept.
func (s *Store) DeletePost(ctx context.Context, slug string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE slug = ?`, slug)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
