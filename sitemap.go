package bizengine

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// handleSitemap serves a sitemap covering the site root and published posts.
func (a *App) handleSitemap(c echo.Context) error {
	page, err := a.Store.ListPosts(c.Request().Context(), ListOptions{Page: 1, Limit: feedLimit})
	if err != nil {
		return err
	}
	base := a.Config.Server.BaseURL
	urls := []sitemapURL{
		{Loc: buildURL(base)},
		{Loc: buildURL(base, "blog")},
	}
	for _, p := range page.Posts {
		lastMod := p.UpdatedAt
		if lastMod == "" {
			lastMod = p.PublishedAt
		}
		urls = append(urls, sitemapURL{
			Loc:     buildURL(base, "blog", p.Slug),
			LastMod: lastMod,
		})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
