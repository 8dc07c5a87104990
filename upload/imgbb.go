package upload

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ImgBBClient talks to the ImgBB v1 upload API.
type ImgBBClient struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

// NewImgBBClient creates a client for the given API key. endpoint is the API
// base, normally https://api.imgbb.com/1.
func NewImgBBClient(apiKey, endpoint string) *ImgBBClient {
	return &ImgBBClient{
		apiKey:   apiKey,
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Image is the hosted image metadata returned by ImgBB, reduced to the fields
// clients need.
type Image struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	DisplayURL string `json:"displayUrl"`
	ThumbURL   string `json:"thumbUrl,omitempty"`
	MediumURL  string `json:"mediumUrl,omitempty"`
	DeleteURL  string `json:"deleteUrl"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Size       int64  `json:"size"`
	Name       string `json:"name"`
	UploadedAt string `json:"uploadedAt"`
}

type imgbbResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		ID         string      `json:"id"`
		Title      string      `json:"title"`
		URL        string      `json:"url"`
		DisplayURL string      `json:"display_url"`
		DeleteURL  string      `json:"delete_url"`
		Width      json.Number `json:"width"`
		Height     json.Number `json:"height"`
		Size       json.Number `json:"size"`
		Thumb      struct {
			URL string `json:"url"`
		} `json:"thumb"`
		Medium struct {
			URL string `json:"url"`
		} `json:"medium"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload posts base64-encoded image bytes to ImgBB and returns the hosted
// image metadata.
func (c *ImgBBClient) Upload(ctx context.Context, data []byte, name string) (Image, error) {
	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("image", base64.StdEncoding.EncodeToString(data))
	if name != "" {
		form.Set("name", name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/upload", strings.NewReader(form.Encode()))
	if err != nil {
		return Image{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("imgbb upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Image{}, fmt.Errorf("imgbb response: %w", err)
	}

	var parsed imgbbResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Image{}, fmt.Errorf("imgbb response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !parsed.Success {
		msg := parsed.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return Image{}, fmt.Errorf("imgbb upload failed: %s", msg)
	}

	width, _ := parsed.Data.Width.Int64()
	height, _ := parsed.Data.Height.Int64()
	size, _ := parsed.Data.Size.Int64()
	return Image{
		ID:         parsed.Data.ID,
		URL:        parsed.Data.URL,
		DisplayURL: parsed.Data.DisplayURL,
		ThumbURL:   parsed.Data.Thumb.URL,
		MediumURL:  parsed.Data.Medium.URL,
		DeleteURL:  parsed.Data.DeleteURL,
		Width:      int(width),
		Height:     int(height),
		Size:       size,
		Name:       parsed.Data.Title,
		UploadedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Delete requests removal of a hosted image through its delete URL. ImgBB
// exposes deletion as a page link rather than an API call, so the outcome is
// best effort.
func (c *ImgBBClient) Delete(ctx context.Context, deleteURL string) error {
	u, err := url.Parse(deleteURL)
	if err != nil || u.Scheme != "https" || !strings.HasSuffix(u.Host, "ibb.co") {
		return fmt.Errorf("invalid delete url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, deleteURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("imgbb delete: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("imgbb delete failed: status %d", resp.StatusCode)
	}
	return nil
}
