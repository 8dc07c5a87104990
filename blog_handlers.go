package bizengine

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/labstack/echo/v4"
)

var slugParam = regexp.MustCompile(`^[a-z0-9-]+$`)

func parseSlugParam(c echo.Context) (string, bool) {
	slug := c.Param("slug")
	return slug, slugParam.MatchString(slug)
}

func parseIntParam(raw string, def, min, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// handleListPosts serves the public, paginated post listing.
func (a *App) handleListPosts(c echo.Context) error {
	opts := ListOptions{
		Page:     parseIntParam(c.QueryParam("page"), 1, 1, 1<<30),
		Limit:    parseIntParam(c.QueryParam("limit"), 10, 1, 50),
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
	}
	if raw := c.QueryParam("featured"); raw != "" {
		f, err := strconv.ParseBool(raw)
		if err != nil {
			return respondValidation(c, map[string]string{"featured": "featured must be a boolean"})
		}
		opts.Featured = &f
	}
	page, err := a.Store.ListPosts(c.Request().Context(), opts)
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, page)
}

// handleGetPost serves a single published post by slug.
func (a *App) handleGetPost(c echo.Context) error {
	slug, ok := parseSlugParam(c)
	if !ok {
		return respondValidation(c, map[string]string{"slug": "slug must match [a-z0-9-]+"})
	}
	post, err := a.Store.GetPostBySlug(c.Request().Context(), slug, false)
	if err != nil {
		return blogError(c, err)
	}
	return respondData(c, http.StatusOK, post)
}

// handleCategories serves the category list from the TTL cache.
func (a *App) handleCategories(c echo.Context) error {
	cats, err := a.Categories.List(c.Request().Context())
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, cats)
}

// handleRelatedPosts serves posts sharing the source post's category or tags.
func (a *App) handleRelatedPosts(c echo.Context) error {
	slug, ok := parseSlugParam(c)
	if !ok {
		return respondValidation(c, map[string]string{"slug": "slug must match [a-z0-9-]+"})
	}
	limit := parseIntParam(c.QueryParam("limit"), 4, 1, 10)
	posts, err := a.Store.RelatedPosts(c.Request().Context(), slug, limit)
	if err != nil {
		return blogError(c, err)
	}
	return respondData(c, http.StatusOK, posts)
}

// handleIncrementViews bumps a post's view counter.
func (a *App) handleIncrementViews(c echo.Context) error {
	slug, ok := parseSlugParam(c)
	if !ok {
		return respondValidation(c, map[string]string{"slug": "slug must match [a-z0-9-]+"})
	}
	updated, err := a.Store.IncrementViews(c.Request().Context(), slug)
	if err != nil {
		return err
	}
	if !updated {
		return respondError(c, http.StatusNotFound, codePostNotFound, "post not found")
	}
	return respondMessage(c, http.StatusOK, "views updated", nil)
}

// handleCreatePost materializes a new post from the request payload.
func (a *App) handleCreatePost(c echo.Context) error {
	var in PostInput
	if err := c.Bind(&in); err != nil {
		return respondValidation(c, map[string]string{"body": "request body must be valid JSON"})
	}
	post, err := a.Blog.CreatePost(c.Request().Context(), in)
	if err != nil {
		return blogError(c, err)
	}
	a.Categories.Invalidate()
	return respondMessage(c, http.StatusCreated, "post created", post)
}

// handleUpdatePost applies a partial update to the post behind slug.
func (a *App) handleUpdatePost(c echo.Context) error {
	slug, ok := parseSlugParam(c)
	if !ok {
		return respondValidation(c, map[string]string{"slug": "slug must match [a-z0-9-]+"})
	}
	var up PostUpdate
	if err := c.Bind(&up); err != nil {
		return respondValidation(c, map[string]string{"body": "request body must be valid JSON"})
	}
	post, err := a.Blog.UpdatePost(c.Request().Context(), slug, up)
	if err != nil {
		return blogError(c, err)
	}
	a.Categories.Invalidate()
	return respondMessage(c, http.StatusOK, "post updated", post)
}

// handleDeletePost removes a post by slug.
func (a *App) handleDeletePost(c echo.Context) error {
	slug, ok := parseSlugParam(c)
	if !ok {
		return respondValidation(c, map[string]string{"slug": "slug must match [a-z0-9-]+"})
	}
	deleted, err := a.Store.DeletePost(c.Request().Context(), slug)
	if err != nil {
		return err
	}
	if !deleted {
		return respondError(c, http.StatusNotFound, codePostNotFound, "post not found")
	}
	return respondMessage(c, http.StatusOK, "post deleted", nil)
}

// handleAdminListPosts serves the listing including drafts.
func (a *App) handleAdminListPosts(c echo.Context) error {
	opts := ListOptions{
		Page:   parseIntParam(c.QueryParam("page"), 1, 1, 1<<30),
		Limit:  parseIntParam(c.QueryParam("limit"), 10, 1, 100),
		Drafts: true,
	}
	if raw := c.QueryParam("published"); raw != "" {
		published, err := strconv.ParseBool(raw)
		if err != nil {
			return respondValidation(c, map[string]string{"published": "published must be a boolean"})
		}
		// Drafts=true lifts the status filter entirely; published=true narrows
		// back down to published posts only.
		if published {
			opts.Drafts = false
		}
	}
	page, err := a.Store.ListPosts(c.Request().Context(), opts)
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, page)
}
