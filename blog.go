package bizengine

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	excerptLength    = 200
	excerptEllipsis  = "..."
	wordsPerMinute   = 200
	maxSlugCandidate = 255
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripTags removes HTML markup from s.
func StripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

// ExcerptFromBody derives an excerpt by stripping markup from body and
// truncating to excerptLength runes with a trailing ellipsis marker.
func ExcerptFromBody(body string) string {
	plain := strings.TrimSpace(StripTags(body))
	runes := []rune(plain)
	if len(runes) > excerptLength {
		runes = runes[:excerptLength]
	}
	return string(runes) + excerptEllipsis
}

// ReadTime estimates reading time in minutes as ceil(words/200), minimum 1.
func ReadTime(body string) int {
	words := len(strings.Fields(StripTags(body)))
	rt := (words + wordsPerMinute - 1) / wordsPerMinute
	if rt < 1 {
		rt = 1
	}
	return rt
}

// BlogService materializes loosely structured post input into normalized
// relational rows and reads them back fully joined. It holds no state beyond
// its store handle; concurrency is whatever the store's slug constraint
// arbitrates.
type BlogService struct {
	store *Store
	log   *zap.Logger
}

// NewBlogService creates a BlogService backed by store.
func NewBlogService(store *Store, log *zap.Logger) *BlogService {
	return &BlogService{store: store, log: log}
}

// CreatePost validates input, allocates a unique slug, resolves or creates
// the referenced author/category/tags, computes derived fields, inserts the
// post and returns it fully materialized.
//
// There is no transaction across the resolve-and-insert steps: an author or
// category created before a failing insert survives and is reused on retry.
func (b *BlogService) CreatePost(ctx context.Context, in PostInput) (Post, error) {
	if err := validatePostInput(in); err != nil {
		return Post{}, err
	}

	candidate := in.Slug
	if candidate == "" {
		candidate = in.Title
	}
	slug, err := b.store.allocateSlug(ctx, candidate, 0)
	if err != nil {
		return Post{}, err
	}

	authorID, err := b.store.FindOrCreateAuthor(ctx, in.Author)
	if err != nil {
		return Post{}, err
	}

	var categoryID sql.NullInt64
	if in.Category != "" {
		id, err := b.store.FindOrCreateCategory(ctx, in.Category)
		if err != nil {
			return Post{}, err
		}
		categoryID = sql.NullInt64{Int64: id, Valid: true}
	}

	excerpt := in.Excerpt
	if excerpt == "" {
		excerpt = ExcerptFromBody(in.Content)
	}

	row := postRow{
		Slug:            slug,
		Title:           in.Title,
		Content:         in.Content,
		Excerpt:         excerpt,
		AuthorID:        authorID,
		CategoryID:      categoryID,
		FeaturedImage:   in.FeaturedImage,
		MetaTitle:       in.MetaTitle,
		MetaDescription: in.MetaDescription,
		Status:          StatusDraft,
		Featured:        in.Featured,
		ReadTime:        ReadTime(in.Content),
	}
	if in.Published {
		row.Status = StatusPublished
		row.PublishedAt = sql.NullString{String: nowStamp(), Valid: true}
	}

	postID, err := b.store.InsertPost(ctx, row)
	if err != nil {
		return Post{}, err
	}

	if err := b.attachTags(ctx, postID, in.Tags); err != nil {
		return Post{}, err
	}

	b.log.Info("post created",
		zap.Int64("id", postID),
		zap.String("slug", slug),
		zap.String("status", row.Status))
	return b.store.GetPostByID(ctx, postID)
}

// UpdatePost applies a partial update to the post identified by slug.
// Only fields present in the payload are replaced. The slug is recomputed
// only when the caller supplies one; a candidate that normalizes to the
// post's current slug keeps it unchanged.
func (b *BlogService) UpdatePost(ctx context.Context, slug string, up PostUpdate) (Post, error) {
	existing, err := b.store.GetPostBySlug(ctx, slug, true)
	if err != nil {
		return Post{}, err
	}

	title := applyString(existing.Title, up.Title)
	content := applyString(existing.Content, up.Content)
	if title == "" || content == "" {
		fields := map[string]string{}
		if title == "" {
			fields["title"] = "title must not be empty"
		}
		if content == "" {
			fields["content"] = "content must not be empty"
		}
		return Post{}, &ValidationError{Fields: fields}
	}

	newSlug := existing.Slug
	if up.Slug != nil {
		newSlug, err = b.store.allocateSlug(ctx, *up.Slug, existing.ID)
		if err != nil {
			return Post{}, err
		}
	}

	authorName := existing.Author.Name
	if up.Author != nil && *up.Author != "" {
		authorName = *up.Author
	}
	authorID, err := b.store.FindOrCreateAuthor(ctx, authorName)
	if err != nil {
		return Post{}, err
	}

	var categoryID sql.NullInt64
	switch {
	case up.Category != nil && *up.Category != "":
		id, err := b.store.FindOrCreateCategory(ctx, *up.Category)
		if err != nil {
			return Post{}, err
		}
		categoryID = sql.NullInt64{Int64: id, Valid: true}
	case up.Category != nil:
		// explicit empty string clears the category
	case existing.Category != nil:
		categoryID = sql.NullInt64{Int64: existing.Category.ID, Valid: true}
	}

	excerpt := applyString(existing.Excerpt, up.Excerpt)
	if up.Content != nil && up.Excerpt == nil {
		excerpt = ExcerptFromBody(content)
	}

	status := existing.Status
	publishedAt := sql.NullString{String: existing.PublishedAt, Valid: existing.PublishedAt != ""}
	if up.Published != nil {
		if *up.Published {
			status = StatusPublished
			if !publishedAt.Valid {
				// set only on the transition into published
				publishedAt = sql.NullString{String: nowStamp(), Valid: true}
			}
		} else {
			status = StatusDraft
			publishedAt = sql.NullString{}
		}
	}

	row := postRow{
		Slug:            newSlug,
		Title:           title,
		Content:         content,
		Excerpt:         excerpt,
		AuthorID:        authorID,
		CategoryID:      categoryID,
		FeaturedImage:   applyString(existing.FeaturedImage, up.FeaturedImage),
		MetaTitle:       applyString(existing.metaTitle, up.MetaTitle),
		MetaDescription: applyString(existing.metaDescription, up.MetaDescription),
		Status:          status,
		Featured:        applyBool(existing.Featured, up.Featured),
		PublishedAt:     publishedAt,
		ReadTime:        ReadTime(content),
	}
	if err := b.store.UpdatePost(ctx, existing.ID, row); err != nil {
		return Post{}, err
	}

	if up.Tags != nil {
		if err := b.store.ClearPostTags(ctx, existing.ID); err != nil {
			return Post{}, err
		}
		if err := b.attachTags(ctx, existing.ID, *up.Tags); err != nil {
			return Post{}, err
		}
	}

	b.log.Info("post updated",
		zap.Int64("id", existing.ID),
		zap.String("slug", newSlug))
	return b.store.GetPostByID(ctx, existing.ID)
}

func (b *BlogService) attachTags(ctx context.Context, postID int64, tags []string) error {
	for _, name := range tags {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tagID, err := b.store.FindOrCreateTag(ctx, name)
		if err != nil {
			return err
		}
		if err := b.store.TagPost(ctx, postID, tagID); err != nil {
			return err
		}
	}
	return nil
}

func validatePostInput(in PostInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = "title is required"
	} else if len(in.Title) > maxSlugCandidate {
		fields["title"] = "title must not exceed 255 characters"
	}
	if strings.TrimSpace(in.Content) == "" {
		fields["content"] = "content is required"
	}
	if strings.TrimSpace(in.Author) == "" {
		fields["author"] = "author is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func applyString(current string, v *string) string {
	if v != nil {
		return *v
	}
	return current
}

func applyBool(current bool, v *bool) bool {
	if v != nil {
		return *v
	}
	return current
}
