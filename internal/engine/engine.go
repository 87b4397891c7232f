package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"daybook/internal/config"
	"daybook/internal/domain"
	"daybook/internal/download"
	"daybook/internal/events"
	"daybook/internal/kv"
	"daybook/internal/reachability"
	"daybook/internal/remote"
	"daybook/internal/tasks"
	"daybook/internal/videos"
	"daybook/internal/view"
)

// ErrVideoNotFound is returned when an id is in neither the catalog nor the
// downloaded set.
var ErrVideoNotFound = errors.New("video not found")

// Engine wires the stores, the download controller and the event log for
// one workspace.
type Engine struct {
	DB        *sql.DB
	KV        kv.Repo
	Events    events.Writer
	Config    *config.Config
	Remote    *remote.Client
	Tasks     *tasks.Store
	Videos    *videos.Store
	Downloads *download.Controller
	Reach     *reachability.Signal
	Prober    *reachability.Prober
	Agendas   *view.Memo
	Logger    *log.Logger
	Now       func() time.Time

	unsubscribe []func()
}

type Options struct {
	MediaDir   string
	Logger     *log.Logger
	Now        func() time.Time
	HTTPClient *http.Client
	// Online seeds the reachability signal before the first probe.
	Online bool
}

func New(conn *sql.DB, cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	perms, err := download.PermissionsFor(cfg.Downloads.Permission)
	if err != nil {
		return nil, err
	}
	resolution, err := download.ParseResolution(cfg.Downloads.OnCollision)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		DB:      conn,
		KV:      kv.Repo{DB: conn, Now: now},
		Events:  events.Writer{DB: conn, Now: now},
		Config:  cfg,
		Agendas: &view.Memo{},
		Logger:  logger,
		Now:     now,
	}
	e.Remote = remote.New(cfg.Remote.TasksURL, cfg.Remote.VideosURL, cfg.Timeout())
	if opts.HTTPClient != nil {
		e.Remote.HTTPClient = opts.HTTPClient
	}
	e.Tasks = tasks.New(tasks.Options{KV: e.KV, Remote: e.Remote, Logger: logger, Now: now})
	e.Videos = videos.New(videos.Options{KV: e.KV, Remote: e.Remote, Logger: logger})
	e.Reach = reachability.NewSignal(opts.Online)
	e.Prober = &reachability.Prober{
		URL:      cfg.Reachability.ProbeURL,
		Interval: cfg.ProbeInterval(),
		Signal:   e.Reach,
		Logger:   logger,
	}
	e.Downloads = download.New(download.Config{
		Dir:          opts.MediaDir,
		Client:       opts.HTTPClient,
		Reachability: e.Reach,
		Permissions:  perms,
		Resolver:     download.StaticResolver(resolution),
		Videos:       e.Videos,
		APILevel:     cfg.Downloads.APILevel,
		Logger:       logger,
	})
	e.unsubscribe = append(e.unsubscribe,
		e.Tasks.Subscribe(e.recordTaskChange),
		e.Videos.Subscribe(e.recordVideoChange),
		e.Reach.Subscribe(e.recordReachability),
	)
	return e, nil
}

// Close detaches the event log from the stores.
func (e *Engine) Close() {
	for _, fn := range e.unsubscribe {
		fn()
	}
	e.unsubscribe = nil
}

// Start hydrates both stores. A task hydration failure is kept on the store
// and returned; the downloaded set is loaded regardless.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Videos.HydrateDownloaded(ctx); err != nil {
		e.Logger.Printf("engine: load downloaded videos: %v", err)
	}
	return e.Tasks.Hydrate(ctx)
}

// Agenda derives the selected day's tasks using the store's filter and sort
// unless overrides are given.
func (e *Engine) Agenda(selected time.Time, filter domain.Filter, sortKey domain.SortKey) []domain.Task {
	snap := e.Tasks.Snapshot()
	if filter == "" {
		filter = snap.Filter
	}
	if sortKey == "" {
		sortKey = snap.Sort
	}
	return e.Agendas.Agenda(snap.Revision, snap.Items, selected, filter, sortKey)
}

// Catalog returns the catalog annotated with download status, fetching it
// first when nothing is loaded yet.
func (e *Engine) Catalog(ctx context.Context) ([]view.VideoItem, error) {
	snap := e.Videos.Snapshot()
	var err error
	if len(snap.Catalog) == 0 {
		err = e.Videos.FetchCatalog(ctx)
		snap = e.Videos.Snapshot()
	}
	return view.Catalog(snap.Catalog, snap.Downloaded), err
}

// FindVideo resolves id against the loaded catalog, refreshing it once.
func (e *Engine) FindVideo(ctx context.Context, id string) (domain.Video, error) {
	if v, ok := e.Videos.Find(id); ok {
		return v, nil
	}
	if err := e.Videos.FetchCatalog(ctx); err != nil {
		return domain.Video{}, err
	}
	if v, ok := e.Videos.Find(id); ok {
		return v, nil
	}
	return domain.Video{}, fmt.Errorf("%w: %s", ErrVideoNotFound, id)
}

// Download refreshes reachability and runs the controller for id.
func (e *Engine) Download(ctx context.Context, id string, opts download.Options) (download.Result, error) {
	e.Prober.Check(ctx)
	if !e.Reach.Online() {
		return e.Downloads.Download(ctx, domain.Video{ID: id}, opts)
	}
	v, err := e.FindVideo(ctx, id)
	if err != nil {
		return download.Result{}, err
	}
	return e.Downloads.Download(ctx, v, opts)
}

// PlaybackSource picks the local file for downloaded videos.
func (e *Engine) PlaybackSource(ctx context.Context, id string) (view.Source, error) {
	for _, d := range e.Videos.Downloaded() {
		if d.ID == id {
			return view.PlaybackSource(d.Video, e.Videos.Downloaded()), nil
		}
	}
	v, err := e.FindVideo(ctx, id)
	if err != nil {
		return view.Source{}, err
	}
	return view.PlaybackSource(v, e.Videos.Downloaded()), nil
}

func (e *Engine) recordTaskChange(c tasks.Change) {
	var (
		id      string
		payload events.EventPayload
	)
	switch c.Op {
	case tasks.OpHydrate:
		// successful loads happen on every start and are not logged
		if c.Snapshot.Err == nil {
			return
		}
		payload = events.EventPayload{"error": c.Snapshot.Err.Error()}
	case tasks.OpFilter:
		payload = events.EventPayload{"filter": c.Snapshot.Filter}
	case tasks.OpSort:
		payload = events.EventPayload{"sort": c.Snapshot.Sort}
	default:
		id = strconv.FormatInt(c.TaskID, 10)
		for _, t := range c.Snapshot.Items {
			if t.ID == c.TaskID {
				payload = events.EventPayload{"title": t.Title, "completed": t.Completed, "priority": t.Priority}
				break
			}
		}
	}
	e.append("task."+string(c.Op), "task", id, payload)
}

func (e *Engine) recordVideoChange(c videos.Change) {
	switch c.Op {
	case videos.OpDownloaded:
		e.append("video.downloaded", "video", c.VideoID, nil)
	case videos.OpCatalog:
		if c.Snapshot.Err != nil {
			e.append("video.catalog_failed", "video", "", events.EventPayload{"error": c.Snapshot.Err.Error()})
		}
	}
}

func (e *Engine) recordReachability(online bool) {
	e.append("network.changed", "network", "", events.EventPayload{"online": online})
}

func (e *Engine) append(evtType, kind, id string, payload events.EventPayload) {
	if e.DB == nil {
		return
	}
	if err := e.Events.Append(context.Background(), evtType, kind, id, payload); err != nil {
		e.Logger.Printf("engine: append event %s: %v", evtType, err)
	}
}
