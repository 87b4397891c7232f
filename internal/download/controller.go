// Package download acquires catalog videos for offline playback.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"daybook/internal/domain"
	"daybook/internal/reachability"
)

type State string

const (
	StateIdle            State = "idle"
	StateBlocked         State = "blocked"
	StatePermissionCheck State = "permission_check"
	StateExistenceCheck  State = "existence_check"
	StateCollisionPrompt State = "collision_prompt"
	StateTransferring    State = "transferring"
	StateCommitted       State = "committed"
	StateFailed          State = "failed"
)

// ErrOffline is returned when a download is requested without connectivity.
var ErrOffline = errors.New("cannot download videos while offline; connect to the internet and try again")

// TransferError reports a failed transfer: either a non-success status or a
// transport failure in Err.
type TransferError struct {
	VideoID    string
	StatusCode int
	Status     string
	Err        error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download %s failed: %v", e.VideoID, e.Err)
	}
	return fmt.Sprintf("download %s failed: server returned %s", e.VideoID, e.Status)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Recorder commits a finished download.
type Recorder interface {
	RecordDownloaded(ctx context.Context, v domain.DownloadedVideo) bool
}

type Config struct {
	Dir          string
	Client       *http.Client
	Reachability reachability.Reader
	Permissions  Permissions
	Resolver     Resolver
	Videos       Recorder
	APILevel     int
	// ProgressStep is the minimum fraction between progress reports.
	ProgressStep float64
	OnState      func(videoID string, s State)
	Logger       *log.Logger
}

// Controller drives downloads. One controller serves every video; at most
// one transfer per video id runs at a time.
type Controller struct {
	cfg Config

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

func New(cfg Config) *Controller {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Permissions == nil {
		cfg.Permissions = AllowAll{}
	}
	if cfg.Resolver == nil {
		cfg.Resolver = StaticResolver(Cancel)
	}
	if cfg.Reachability == nil {
		cfg.Reachability = reachability.Static(true)
	}
	if cfg.ProgressStep <= 0 {
		cfg.ProgressStep = 0.1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Controller{cfg: cfg, inflight: map[string]chan struct{}{}}
}

type Options struct {
	Progress func(Progress)
	// Resolver overrides the controller's collision policy for this call.
	Resolver Resolver
}

type Result struct {
	State State  `json:"state"`
	Path  string `json:"path,omitempty"`
	Bytes int64  `json:"bytes,omitempty"`
	// Aborted is set when permission was denied.
	Aborted bool `json:"aborted,omitempty"`
	// Canceled is set when the collision prompt chose Cancel.
	Canceled bool `json:"canceled,omitempty"`
	// Recorded is false when the downloaded set already held the id.
	Recorded bool `json:"recorded,omitempty"`
}

// Path is the deterministic local file for a video id.
func (c *Controller) Path(videoID string) string {
	return filepath.Join(c.cfg.Dir, videoID+".mp4")
}

// Download runs the acquisition lifecycle for v. Permission denial and a
// cancelled collision end in Idle with a nil error.
func (c *Controller) Download(ctx context.Context, v domain.Video, opts Options) (Result, error) {
	if !c.cfg.Reachability.Online() {
		c.emit(v.ID, StateBlocked)
		return Result{State: StateBlocked}, ErrOffline
	}
	if err := validID(v.ID); err != nil {
		return c.fail(v.ID, &TransferError{VideoID: v.ID, Err: err})
	}

	c.emit(v.ID, StatePermissionCheck)
	granted, err := c.cfg.Permissions.Request(ctx, PermissionTier(c.cfg.APILevel))
	if err != nil {
		return c.fail(v.ID, fmt.Errorf("permission request: %w", err))
	}
	if !granted {
		c.emit(v.ID, StateIdle)
		return Result{State: StateIdle, Aborted: true}, nil
	}

	release, err := c.acquire(ctx, v.ID)
	if err != nil {
		return c.fail(v.ID, err)
	}
	defer release()

	resolver := c.cfg.Resolver
	if opts.Resolver != nil {
		resolver = opts.Resolver
	}
	path := c.Path(v.ID)
	for {
		c.emit(v.ID, StateExistenceCheck)
		exists, err := fileExists(path)
		if err != nil {
			return c.fail(v.ID, err)
		}
		if !exists {
			break
		}
		c.emit(v.ID, StateCollisionPrompt)
		choice, err := resolver.Resolve(ctx, v)
		if err != nil {
			return c.fail(v.ID, fmt.Errorf("collision prompt: %w", err))
		}
		if choice != Replace {
			c.emit(v.ID, StateIdle)
			return Result{State: StateIdle, Canceled: true, Path: path}, nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return c.fail(v.ID, fmt.Errorf("remove existing file: %w", err))
		}
	}

	c.emit(v.ID, StateTransferring)
	n, err := c.transfer(ctx, v, path, opts.Progress)
	if err != nil {
		return c.fail(v.ID, err)
	}

	recorded := true
	if c.cfg.Videos != nil {
		recorded = c.cfg.Videos.RecordDownloaded(ctx, domain.DownloadedVideo{Video: v, LocalPath: path})
	}
	c.emit(v.ID, StateCommitted)
	c.emit(v.ID, StateIdle)
	return Result{State: StateCommitted, Path: path, Bytes: n, Recorded: recorded}, nil
}

// transfer streams the body into a temp file and renames it into place.
func (c *Controller) transfer(ctx context.Context, v domain.Video, path string, progress func(Progress)) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.VideoURL, nil)
	if err != nil {
		return 0, &TransferError{VideoID: v.ID, Err: err}
	}
	res, err := c.cfg.Client.Do(req)
	if err != nil {
		return 0, &TransferError{VideoID: v.ID, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return 0, &TransferError{VideoID: v.ID, StatusCode: res.StatusCode, Status: res.Status}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, &TransferError{VideoID: v.ID, Err: err}
	}
	tmp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.%s.part", v.ID, uuid.NewString()))
	f, err := os.Create(tmp)
	if err != nil {
		return 0, &TransferError{VideoID: v.ID, Err: err}
	}
	pw := &progressWriter{total: res.ContentLength, step: c.cfg.ProgressStep, report: progress}
	pw.emit()
	n, err := io.Copy(io.MultiWriter(f, pw), res.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return n, &TransferError{VideoID: v.ID, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return n, &TransferError{VideoID: v.ID, Err: err}
	}
	pw.finish()
	return n, nil
}

// acquire serializes transfers per video id. A waiting caller resumes once
// the running one finishes and then sees its file at the existence check.
func (c *Controller) acquire(ctx context.Context, id string) (func(), error) {
	for {
		c.mu.Lock()
		ch, busy := c.inflight[id]
		if !busy {
			ch = make(chan struct{})
			c.inflight[id] = ch
			c.mu.Unlock()
			return func() {
				c.mu.Lock()
				delete(c.inflight, id)
				c.mu.Unlock()
				close(ch)
			}, nil
		}
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// InFlight reports whether a transfer for id is running.
func (c *Controller) InFlight(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[id]
	return ok
}

func (c *Controller) fail(id string, err error) (Result, error) {
	c.cfg.Logger.Printf("download: %s: %v", id, err)
	c.emit(id, StateFailed)
	c.emit(id, StateIdle)
	return Result{State: StateFailed}, err
}

func (c *Controller) emit(id string, s State) {
	if c.cfg.OnState != nil {
		c.cfg.OnState(id, s)
	}
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("video id is required")
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("video id %q is not a valid file name", id)
	}
	return nil
}
