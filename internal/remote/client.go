// Package remote reads the read-only JSON endpoints that seed the stores.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"daybook/internal/domain"
)

// Todo is the shape served by the remote task list.
type Todo struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GET %s: status=%d body=%s", e.URL, e.StatusCode, e.Body)
}

// Client fetches the todo list and the video catalog.
type Client struct {
	TasksURL   string
	VideosURL  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(tasksURL, videosURL string, timeout time.Duration) *Client {
	return &Client{
		TasksURL:  tasksURL,
		VideosURL: videosURL,
		Timeout:   timeout,
	}
}

// Todos returns the remote todo list in server order.
func (c *Client) Todos(ctx context.Context) ([]Todo, error) {
	var out []Todo
	if err := c.get(ctx, c.TasksURL, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Videos returns the remote video catalog in server order.
func (c *Client) Videos(ctx context.Context) ([]domain.Video, error) {
	var out []domain.Video
	if err := c.get(ctx, c.VideosURL, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("remote url not configured")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
