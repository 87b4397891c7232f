package daybooksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Daybook HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Task mirrors the API task model.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     time.Time `json:"dueDate"`
	Completed   bool      `json:"completed"`
	Priority    string    `json:"priority"`
	Color       string    `json:"color,omitempty"`
}

// NewTask is a task submission. DueDate accepts RFC 3339 or YYYY-MM-DD.
type NewTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"dueDate"`
	Priority    string `json:"priority,omitempty"`
	Color       string `json:"color,omitempty"`
}

type TaskList struct {
	Items   []Task `json:"items"`
	Filter  string `json:"filter"`
	Sort    string `json:"sort"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

type Agenda struct {
	Date   string `json:"date"`
	Filter string `json:"filter"`
	Sort   string `json:"sort"`
	Items  []Task `json:"items"`
}

// Video is a catalog entry annotated with its download status.
type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Duration     string `json:"duration"`
	ThumbnailURL string `json:"thumbnailUrl"`
	VideoURL     string `json:"videoUrl"`
	Status       string `json:"status"`
	LocalPath    string `json:"localPath,omitempty"`
}

type DownloadResult struct {
	VideoID  string `json:"video_id"`
	State    string `json:"state"`
	Path     string `json:"path,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
	Aborted  bool   `json:"aborted,omitempty"`
	Canceled bool   `json:"canceled,omitempty"`
	Recorded bool   `json:"recorded,omitempty"`
}

type Source struct {
	VideoID  string `json:"video_id"`
	Kind     string `json:"kind"`
	Location string `json:"location"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Tasks lists every task with the current filter and sort.
func (c *Client) Tasks(ctx context.Context) (TaskList, error) {
	var resp TaskList
	err := c.do(ctx, http.MethodGet, "tasks", nil, &resp)
	return resp, err
}

// CreateTask adds a task.
func (c *Client) CreateTask(ctx context.Context, t NewTask) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", t, &resp)
	return resp, err
}

// ToggleTask flips completion.
func (c *Client) ToggleTask(ctx context.Context, id int64) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks/"+strconv.FormatInt(id, 10)+"/toggle", nil, &resp)
	return resp, err
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+strconv.FormatInt(id, 10), nil, nil)
}

// Agenda returns the tasks due on date (YYYY-MM-DD); empty filter or sort
// keep the server's view settings.
func (c *Client) Agenda(ctx context.Context, date, filter, sort string) (Agenda, error) {
	q := url.Values{}
	for k, v := range map[string]string{"date": date, "filter": filter, "sort": sort} {
		if v != "" {
			q.Set(k, v)
		}
	}
	endpoint := "agenda"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp Agenda
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Videos returns the catalog with download status.
func (c *Client) Videos(ctx context.Context) ([]Video, error) {
	var resp struct {
		Items []Video `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "videos", nil, &resp)
	return resp.Items, err
}

// Download asks the server to fetch a video. onCollision is "cancel",
// "replace" or empty for the server default.
func (c *Client) Download(ctx context.Context, videoID, onCollision string) (DownloadResult, error) {
	endpoint := fmt.Sprintf("videos/%s/download", url.PathEscape(videoID))
	if onCollision != "" {
		endpoint += "?on_collision=" + url.QueryEscape(onCollision)
	}
	var resp DownloadResult
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) Source(ctx context.Context, videoID string) (Source, error) {
	var resp Source
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("videos/%s/source", url.PathEscape(videoID)), nil, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
