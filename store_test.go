package bizengine

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s, func() { s.Close() }
}

// mustCreatePost inserts a minimal published post and returns its id.
func mustCreatePost(t *testing.T, s *Store, slug, title string) int64 {
	t.Helper()
	ctx := context.Background()
	authorID, err := s.FindOrCreateAuthor(ctx, "Test Author")
	if err != nil {
		t.Fatalf("FindOrCreateAuthor: %v", err)
	}
	id, err := s.InsertPost(ctx, postRow{
		Slug:        slug,
		Title:       title,
		Content:     "<p>content for " + title + "</p>",
		Excerpt:     "excerpt for " + title,
		AuthorID:    authorID,
		Status:      StatusPublished,
		PublishedAt: sql.NullString{String: nowStamp(), Valid: true},
		ReadTime:    1,
	})
	if err != nil {
		t.Fatalf("InsertPost(%q): %v", slug, err)
	}
	return id
}

func TestFindOrCreateAuthorIsIdempotent(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	first, err := s.FindOrCreateAuthor(ctx, "Jane")
	if err != nil {
		t.Fatalf("FindOrCreateAuthor: %v", err)
	}
	second, err := s.FindOrCreateAuthor(ctx, "Jane")
	if err != nil {
		t.Fatalf("FindOrCreateAuthor: %v", err)
	}
	if first != second {
		t.Errorf("ids differ: %d != %d", first, second)
	}
}

func TestFindOrCreateCategorySlugs(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := s.FindOrCreateCategory(ctx, "Web Development"); err != nil {
		t.Fatalf("FindOrCreateCategory: %v", err)
	}
	cats, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 1 {
		t.Fatalf("got %d categories, want 1", len(cats))
	}
	if cats[0].Slug != "web-development" {
		t.Errorf("category slug = %q, want %q", cats[0].Slug, "web-development")
	}
}

func TestInsertPostDuplicateSlugIsConflict(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreatePost(t, s, "taken", "Taken")

	authorID, _ := s.FindOrCreateAuthor(ctx, "Test Author")
	_, err := s.InsertPost(ctx, postRow{
		Slug:     "taken",
		Title:    "Another",
		Content:  "x",
		AuthorID: authorID,
		Status:   StatusDraft,
		ReadTime: 1,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestGetPostBySlugHidesDrafts(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	authorID, _ := s.FindOrCreateAuthor(ctx, "Test Author")
	if _, err := s.InsertPost(ctx, postRow{
		Slug:     "draft-post",
		Title:    "Draft",
		Content:  "x",
		AuthorID: authorID,
		Status:   StatusDraft,
		ReadTime: 1,
	}); err != nil {
		t.Fatalf("InsertPost: %v", err)
	}

	if _, err := s.GetPostBySlug(ctx, "draft-post", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("public lookup err = %v, want ErrNotFound", err)
	}
	post, err := s.GetPostBySlug(ctx, "draft-post", true)
	if err != nil {
		t.Fatalf("draft lookup: %v", err)
	}
	if post.Published {
		t.Error("draft reported as published")
	}
}

func TestListPostsPagination(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for _, slug := range []string{"one", "two", "three", "four", "five"} {
		mustCreatePost(t, s, slug, "Post "+slug)
	}

	page, err := s.ListPosts(ctx, ListOptions{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(page.Posts) != 2 {
		t.Errorf("page 1 has %d posts, want 2", len(page.Posts))
	}
	if page.Pagination.Total != 5 {
		t.Errorf("total = %d, want 5", page.Pagination.Total)
	}
	if page.Pagination.TotalPages != 3 {
		t.Errorf("totalPages = %d, want 3", page.Pagination.TotalPages)
	}

	last, err := s.ListPosts(ctx, ListOptions{Page: 3, Limit: 2})
	if err != nil {
		t.Fatalf("ListPosts page 3: %v", err)
	}
	if len(last.Posts) != 1 {
		t.Errorf("page 3 has %d posts, want 1", len(last.Posts))
	}

	// Listings omit full content.
	if page.Posts[0].Content != "" {
		t.Error("listing includes full content")
	}
}

func TestListPostsSearch(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreatePost(t, s, "golang-tips", "Practical Golang Tips")
	mustCreatePost(t, s, "gardening", "Gardening for Beginners")

	page, err := s.ListPosts(ctx, ListOptions{Page: 1, Limit: 10, Search: "golang"})
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(page.Posts) != 1 || page.Posts[0].Slug != "golang-tips" {
		t.Errorf("search returned %+v, want only golang-tips", page.Posts)
	}
}

func TestIncrementViews(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreatePost(t, s, "counted", "Counted")

	for i := 0; i < 3; i++ {
		updated, err := s.IncrementViews(ctx, "counted")
		if err != nil {
			t.Fatalf("IncrementViews: %v", err)
		}
		if !updated {
			t.Fatal("IncrementViews reported no match")
		}
	}
	post, err := s.GetPostBySlug(ctx, "counted", false)
	if err != nil {
		t.Fatalf("GetPostBySlug: %v", err)
	}
	if post.Views != 3 {
		t.Errorf("views = %d, want 3", post.Views)
	}

	updated, err := s.IncrementViews(ctx, "missing")
	if err != nil {
		t.Fatalf("IncrementViews: %v", err)
	}
	if updated {
		t.Error("IncrementViews matched a nonexistent slug")
	}
}

func TestDeletePost(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreatePost(t, s, "doomed", "Doomed")

	deleted, err := s.DeletePost(ctx, "doomed")
	if err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if !deleted {
		t.Error("DeletePost reported no match")
	}
	if _, err := s.GetPostBySlug(ctx, "doomed", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("post still found after delete: %v", err)
	}

	deleted, err = s.DeletePost(ctx, "doomed")
	if err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if deleted {
		t.Error("second delete reported a match")
	}
}

func TestRelatedPostsByCategoryAndTag(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	authorID, _ := s.FindOrCreateAuthor(ctx, "Test Author")
	catID, _ := s.FindOrCreateCategory(ctx, "Guides")

	insert := func(slug string, withCat bool, tags ...string) int64 {
		row := postRow{
			Slug:        slug,
			Title:       slug,
			Content:     "x",
			AuthorID:    authorID,
			Status:      StatusPublished,
			PublishedAt: sql.NullString{String: nowStamp(), Valid: true},
			ReadTime:    1,
		}
		if withCat {
			row.CategoryID = sql.NullInt64{Int64: catID, Valid: true}
		}
		id, err := s.InsertPost(ctx, row)
		if err != nil {
			t.Fatalf("InsertPost(%q): %v", slug, err)
		}
		for _, tag := range tags {
			tagID, err := s.FindOrCreateTag(ctx, tag)
			if err != nil {
				t.Fatalf("FindOrCreateTag: %v", err)
			}
			if err := s.TagPost(ctx, id, tagID); err != nil {
				t.Fatalf("TagPost: %v", err)
			}
		}
		return id
	}

	insert("source", true, "go")
	insert("same-category", true)
	insert("shared-tag", false, "go")
	insert("unrelated", false, "cooking")

	related, err := s.RelatedPosts(ctx, "source", 10)
	if err != nil {
		t.Fatalf("RelatedPosts: %v", err)
	}
	got := map[string]bool{}
	for _, p := range related {
		got[p.Slug] = true
	}
	if !got["same-category"] || !got["shared-tag"] {
		t.Errorf("related = %v, want same-category and shared-tag", got)
	}
	if got["unrelated"] || got["source"] {
		t.Errorf("related = %v, includes unrelated or the source post", got)
	}
}
