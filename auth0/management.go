package auth0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// tokenSlack renews the cached management token this long before expiry.
const tokenSlack = time.Minute

// Role is an Auth0 role as returned by the Management API.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Management is a minimal Auth0 Management API client scoped to role
// administration. It obtains machine-to-machine tokens via client credentials
// and caches them until shortly before expiry.
type Management struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewManagement creates a Management client for the configured tenant.
func NewManagement(cfg Config, log *zap.Logger) *Management {
	return &Management{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log,
	}
}

func (m *Management) baseURL() string {
	return fmt.Sprintf("https://%s/api/v2", m.cfg.Domain)
}

func (m *Management) accessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" && time.Now().Before(m.expires.Add(-tokenSlack)) {
		return m.token, nil
	}

	payload, _ := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     m.cfg.ClientID,
		"client_secret": m.cfg.ClientSecret,
		"audience":      fmt.Sprintf("https://%s/api/v2/", m.cfg.Domain),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("https://%s/oauth/token", m.cfg.Domain), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("management token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("management token request: status %d: %s", resp.StatusCode, body)
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("management token response: %w", err)
	}

	m.token = tr.AccessToken
	m.expires = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	m.log.Debug("management token refreshed", zap.Time("expires", m.expires))
	return m.token, nil
}

// doJSON issues an authenticated request and decodes the response into out
// when out is non-nil.
func (m *Management) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	token, err := m.accessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("management %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("management %s %s: status %d: %s", method, path, resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// ListRoles returns all roles defined in the tenant.
func (m *Management) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := m.doJSON(ctx, http.MethodGet, "/roles", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// UserRoles returns the roles assigned to a user.
func (m *Management) UserRoles(ctx context.Context, userID string) ([]Role, error) {
	var roles []Role
	path := "/users/" + url.PathEscape(userID) + "/roles"
	if err := m.doJSON(ctx, http.MethodGet, path, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// AssignRoles adds the given role IDs to a user.
func (m *Management) AssignRoles(ctx context.Context, userID string, roleIDs []string) error {
	path := "/users/" + url.PathEscape(userID) + "/roles"
	return m.doJSON(ctx, http.MethodPost, path, map[string][]string{"roles": roleIDs}, nil)
}

// RemoveRoles removes the given role IDs from a user.
func (m *Management) RemoveRoles(ctx context.Context, userID string, roleIDs []string) error {
	path := "/users/" + url.PathEscape(userID) + "/roles"
	return m.doJSON(ctx, http.MethodDelete, path, map[string][]string{"roles": roleIDs}, nil)
}
