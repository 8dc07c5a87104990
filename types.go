package bizengine

// Post status values. PublishedAt is set only when a post transitions into
// StatusPublished.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Post is the fully materialized content item as the API exposes it,
// re-read from storage after every write so callers observe exactly what
// was persisted, including server-computed fields.
type Post struct {
	ID            int64     `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Excerpt       string    `json:"excerpt"`
	Content       string    `json:"content,omitempty"`
	FeaturedImage string    `json:"featuredImage,omitempty"`
	Category      *Category `json:"category"`
	Tags          []string  `json:"tags"`
	Author        Author    `json:"author"`
	PublishedAt   string    `json:"publishedAt,omitempty"`
	UpdatedAt     string    `json:"updatedAt,omitempty"`
	ReadTime      int       `json:"readTime"`
	Views         int64     `json:"views"`
	Status        string    `json:"status"`
	Featured      bool      `json:"featured"`
	Published     bool      `json:"published"`
	SEO           SEO       `json:"seo"`

	// Raw stored meta column values, kept separate from SEO so the wire
	// fallbacks (title/excerpt) never leak back into storage on partial
	// updates.
	metaTitle       string
	metaDescription string
}

// Author is a lightweight named entity resolved by exact display name.
type Author struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Category is a lightweight named entity with its own derived slug.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// SEO carries per-post metadata; both fields fall back to the post's own
// title/excerpt when not explicitly set.
type SEO struct {
	MetaTitle       string `json:"metaTitle"`
	MetaDescription string `json:"metaDescription"`
}

// PostInput is the loosely structured payload for creating a post. Author,
// category and tags are free text, resolved or created by name.
type PostInput struct {
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Excerpt         string   `json:"excerpt"`
	Author          string   `json:"author"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
	Published       bool     `json:"published"`
	Featured        bool     `json:"featured"`
	FeaturedImage   string   `json:"featuredImage"`
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Slug            string   `json:"slug"`
}

// PostUpdate is a partial-replacement payload: only non-nil fields are
// applied. Supplying Slug runs the new value through the slug allocator,
// which may change the post's public identifier.
type PostUpdate struct {
	Title           *string   `json:"title"`
	Content         *string   `json:"content"`
	Excerpt         *string   `json:"excerpt"`
	Author          *string   `json:"author"`
	Category        *string   `json:"category"`
	Tags            *[]string `json:"tags"`
	Published       *bool     `json:"published"`
	Featured        *bool     `json:"featured"`
	FeaturedImage   *string   `json:"featuredImage"`
	MetaTitle       *string   `json:"metaTitle"`
	MetaDescription *string   `json:"metaDescription"`
	Slug            *string   `json:"slug"`
}

// PostPage is one page of a post listing plus pagination metadata.
type PostPage struct {
	Posts      []Post     `json:"posts"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the window a PostPage covers.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ListOptions filters and paginates post listings.
type ListOptions struct {
	Page     int
	Limit    int
	Category string // category slug
	Search   string // matched against title and excerpt
	Featured *bool
	Drafts   bool // include unpublished posts (admin listing)
}
