package bizengine

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const feedLimit = 50

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// buildURL joins path segments onto a base URL without doubling slashes.
func buildURL(base string, parts ...string) string {
	u := strings.TrimRight(base, "/")
	for _, p := range parts {
		u += "/" + strings.Trim(p, "/")
	}
	return u
}

// handleFeed serves an RSS 2.0 feed of the most recent published posts.
func (a *App) handleFeed(c echo.Context) error {
	page, err := a.Store.ListPosts(c.Request().Context(), ListOptions{Page: 1, Limit: feedLimit})
	if err != nil {
		return err
	}
	base := a.Config.Server.BaseURL
	items := make([]rssItem, 0, len(page.Posts))
	for _, p := range page.Posts {
		pubDate := ""
		if t, err := time.Parse(time.RFC3339, p.PublishedAt); err == nil {
			pubDate = t.Format(time.RFC1123Z)
		}
		postURL := buildURL(base, "blog", p.Slug)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        postURL,
			Description: p.Excerpt,
			PubDate:     pubDate,
			GUID:        postURL,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Server.Name,
			Link:        base,
			Description: a.Config.Server.Name + " blog",
			Items:       items,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
