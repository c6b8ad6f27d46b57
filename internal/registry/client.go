package registry

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = 60 * time.Second

// Config holds the connection parameters of one registry instance.
type Config struct {
	Name               string
	URL                string
	APIKey             string
	Timeout            time.Duration
	RequestsPerSecond  float64
	InsecureSkipVerify bool
}

// Client talks to the Radarr v3 API.
type Client struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Radarr client. A zero RequestsPerSecond disables
// client-side rate limiting.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := &http.Client{Timeout: timeout}
	if cfg.InsecureSkipVerify {
		hc.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // explicitly requested for self-signed setups
		}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	name := cfg.Name
	if name == "" {
		name = "radarr"
	}

	return &Client{
		name:    name,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  hc,
		limiter: limiter,
	}
}

// Name returns the configured instance name.
func (c *Client) Name() string {
	return c.name
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s rejected the API key (status %d)", ErrUnavailable, c.name, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Validate checks connectivity and that the remote application is Radarr.
func (c *Client) Validate(ctx context.Context) error {
	var status struct {
		AppName string `json:"appName"`
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v3/system/status", nil, &status); err != nil {
		return fmt.Errorf("failed to validate connection to %s: %w", c.name, err)
	}
	if !strings.EqualFold(status.AppName, "Radarr") {
		return fmt.Errorf("%w: expected Radarr but %s is %q", ErrUnavailable, c.name, status.AppName)
	}
	return nil
}

type apiMovie struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Year      int     `json:"year"`
	TmdbID    int64   `json:"tmdbId"`
	HasFile   bool    `json:"hasFile"`
	Status    string  `json:"status"`
	Tags      []int64 `json:"tags"`
	MovieFile *struct {
		Path         string `json:"path"`
		RelativePath string `json:"relativePath"`
		SceneName    string `json:"sceneName"`
		ReleaseGroup string `json:"releaseGroup"`
		MediaInfo    *struct {
			VideoDynamicRange     string `json:"videoDynamicRange"`
			VideoDynamicRangeType string `json:"videoDynamicRangeType"`
		} `json:"mediaInfo"`
	} `json:"movieFile"`
}

func convertMovie(m *apiMovie) Item {
	item := Item{
		ID:         m.ID,
		ExternalID: m.TmdbID,
		Title:      m.Title,
		Year:       m.Year,
		HasFile:    m.HasFile,
		Labels:     append([]int64(nil), m.Tags...),
	}
	if m.MovieFile != nil {
		item.FilePath = m.MovieFile.Path
		item.RelativePath = m.MovieFile.RelativePath
		item.SceneName = m.MovieFile.SceneName
		item.ReleaseGroup = m.MovieFile.ReleaseGroup
		if m.MovieFile.MediaInfo != nil {
			item.DynamicRangeType = m.MovieFile.MediaInfo.VideoDynamicRangeType
		}
	} else {
		item.HasFile = false
	}
	return item
}

// ListItems returns every movie in the library.
func (c *Client) ListItems(ctx context.Context) ([]Item, error) {
	var movies []apiMovie
	if err := c.do(ctx, http.MethodGet, "/api/v3/movie", nil, &movies); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(movies))
	for i := range movies {
		if movies[i].Status == "deleted" {
			continue
		}
		items = append(items, convertMovie(&movies[i]))
	}
	return items, nil
}

// GetItem returns one movie.
func (c *Client) GetItem(ctx context.Context, id int64) (Item, error) {
	var movie apiMovie
	if err := c.do(ctx, http.MethodGet, "/api/v3/movie/"+strconv.FormatInt(id, 10), nil, &movie); err != nil {
		return Item{}, err
	}
	return convertMovie(&movie), nil
}

// ListLabels returns every tag.
func (c *Client) ListLabels(ctx context.Context) ([]Label, error) {
	var labels []Label
	if err := c.do(ctx, http.MethodGet, "/api/v3/tag", nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// CreateLabel creates a tag and returns it with its id.
func (c *Client) CreateLabel(ctx context.Context, name string) (Label, error) {
	var created Label
	if err := c.do(ctx, http.MethodPost, "/api/v3/tag", Label{Name: name}, &created); err != nil {
		return Label{}, fmt.Errorf("failed to create tag %q: %w", name, err)
	}
	return created, nil
}

type movieEditorRequest struct {
	MovieIDs  []int64 `json:"movieIds"`
	Tags      []int64 `json:"tags"`
	ApplyTags string  `json:"applyTags"`
}

// EditItemLabels adds or removes labels on many movies in one call.
func (c *Client) EditItemLabels(ctx context.Context, itemIDs, labelIDs []int64, op Op) error {
	if len(itemIDs) == 0 || len(labelIDs) == 0 {
		return nil
	}
	if op != OpAdd && op != OpRemove {
		return fmt.Errorf("unsupported label operation %q", op)
	}
	req := movieEditorRequest{MovieIDs: itemIDs, Tags: labelIDs, ApplyTags: string(op)}
	if err := c.do(ctx, http.MethodPut, "/api/v3/movie/editor", req, nil); err != nil {
		return fmt.Errorf("failed to %s tags: %w", op, err)
	}
	return nil
}

// DeleteLabel deletes a tag.
func (c *Client) DeleteLabel(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, "/api/v3/tag/"+strconv.FormatInt(id, 10), nil, nil); err != nil {
		return fmt.Errorf("failed to delete tag %d: %w", id, err)
	}
	return nil
}
