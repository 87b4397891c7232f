package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"daybook/internal/domain"
	"daybook/internal/download"
	"daybook/internal/engine"
	"daybook/internal/events"
	"daybook/internal/tasks"
	"daybook/internal/videos"
)

const dateLayout = "2006-01-02"

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
	Auth     AuthConfig
	// CORSOrigins enables cross-origin requests from the listed origins.
	CORSOrigins []string
	Logger      *log.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"validation failed: title: Title is required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"title\":\"Title is required\"}"`
}

type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type handlers struct {
	e      *engine.Engine
	logger *log.Logger
}

// New returns an HTTP handler exposing the daybook API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = logger
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Daybook API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{e: cfg.Engine, logger: logger}
	registerDocs(router, basePath)
	registerHealth(group)
	h.registerTasks(group)
	h.registerView(group)
	h.registerVideos(group)
	h.registerEvents(group)
	registerOpenAPI(router, api, basePath, cfg.Auth.enabled())

	if len(cfg.CORSOrigins) == 0 {
		return router, nil
	}
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(router), nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ve *tasks.ValidationError
	if errors.As(err, &ve) {
		details := make(map[string]any, len(ve.Fields))
		for k, v := range ve.Fields {
			details[k] = v
		}
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), details)
	}
	var he *tasks.HydrationError
	if errors.As(err, &he) {
		return newAPIError(http.StatusServiceUnavailable, "tasks_unavailable", err.Error(), nil)
	}
	if errors.Is(err, engine.ErrVideoNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, download.ErrOffline) {
		return newAPIError(http.StatusServiceUnavailable, "offline", err.Error(), nil)
	}
	var te *download.TransferError
	if errors.As(err, &te) {
		details := map[string]any{"video_id": te.VideoID}
		if te.StatusCode != 0 {
			details["status"] = te.StatusCode
		}
		return newAPIError(http.StatusBadGateway, "transfer_failed", err.Error(), details)
	}
	var fe *videos.FetchError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusBadGateway, "catalog_unavailable", err.Error(), nil)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newAPIError(http.StatusGatewayTimeout, "timeout", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "not a valid") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string, secured bool) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			if secured {
				applyAuthSecurity(oas, basePath)
			}
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Daybook API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

// hydrated loads the task store on first use. Mutations refuse to run on a
// collection that failed to load so a write cannot clobber stored data.
func (h handlers) hydrated(ctx context.Context) error {
	return h.e.Tasks.Hydrate(ctx)
}

func (h handlers) registerTasks(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body TaskListResponse `json:"body"`
	}, error) {
		_ = h.hydrated(ctx)
		snap := h.e.Tasks.Snapshot()
		return &struct {
			Body TaskListResponse `json:"body"`
		}{Body: taskListResponse(snap.Items, snap.Filter, snap.Sort, snap.Loading, snap.Err)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		now := h.e.Now()
		due, err := tasks.ParseDue(input.Body.DueDate, now)
		if err != nil {
			return nil, handleError(err)
		}
		if err := tasks.ValidateSubmission(input.Body.Title, due, now); err != nil {
			return nil, handleError(err)
		}
		if err := h.hydrated(ctx); err != nil {
			return nil, handleError(err)
		}
		t, err := h.e.Tasks.Add(ctx, tasks.Input{
			Title:       input.Body.Title,
			Description: strPtrValue(input.Body.Description),
			DueDate:     due,
			Priority:    domain.Priority(strPtrValue(input.Body.Priority)),
			Color:       strPtrValue(input.Body.Color),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}",
		Summary:     "Replace task",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64             `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		if err := h.hydrated(ctx); err != nil {
			return nil, handleError(err)
		}
		existing, ok := h.e.Tasks.Get(input.ID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("task %d not found", input.ID), nil)
		}
		now := h.e.Now()
		due, err := tasks.ParseDue(input.Body.DueDate, now)
		if err != nil {
			return nil, handleError(err)
		}
		// an unchanged due date may already be in the past
		if due.Equal(existing.DueDate) {
			now = due
		}
		if err := tasks.ValidateSubmission(input.Body.Title, due, now); err != nil {
			return nil, handleError(err)
		}
		updated := domain.Task{
			ID:          input.ID,
			Title:       input.Body.Title,
			Description: strPtrValue(input.Body.Description),
			DueDate:     due,
			Completed:   input.Body.Completed,
			Priority:    domain.Priority(strPtrValue(input.Body.Priority)),
			Color:       strPtrValue(input.Body.Color),
		}
		found, err := h.e.Tasks.Update(ctx, updated)
		if err != nil {
			return nil, handleError(err)
		}
		if !found {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("task %d not found", input.ID), nil)
		}
		t, _ := h.e.Tasks.Get(input.ID)
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		if err := h.hydrated(ctx); err != nil {
			return nil, handleError(err)
		}
		if !h.e.Tasks.Delete(ctx, input.ID) {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("task %d not found", input.ID), nil)
		}
		h.logger.Printf("server: task %d deleted by %s", input.ID, subjectFromContext(ctx))
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/toggle",
		Summary:     "Toggle task completion",
		Errors:      []int{http.StatusNotFound, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		if err := h.hydrated(ctx); err != nil {
			return nil, handleError(err)
		}
		t, ok := h.e.Tasks.Toggle(ctx, input.ID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("task %d not found", input.ID), nil)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})
}

func (h handlers) registerView(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "set-view",
		Method:      http.MethodPut,
		Path:        "/view",
		Summary:     "Set agenda filter and sort",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body SetViewRequest `json:"body"`
	}) (*struct {
		Body ViewResponse `json:"body"`
	}, error) {
		if input.Body.Filter != nil {
			if err := h.e.Tasks.SetFilter(domain.Filter(*input.Body.Filter)); err != nil {
				return nil, handleError(err)
			}
		}
		if input.Body.Sort != nil {
			if err := h.e.Tasks.SetSort(domain.SortKey(*input.Body.Sort)); err != nil {
				return nil, handleError(err)
			}
		}
		snap := h.e.Tasks.Snapshot()
		return &struct {
			Body ViewResponse `json:"body"`
		}{Body: ViewResponse{Filter: string(snap.Filter), Sort: string(snap.Sort)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "agenda",
		Method:      http.MethodGet,
		Path:        "/agenda",
		Summary:     "Tasks due on a day",
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Date   string `query:"date" doc:"YYYY-MM-DD, defaults to today"`
		Filter string `query:"filter" doc:"all, completed or incomplete"`
		Sort   string `query:"sort" doc:"date or priority"`
	}) (*struct {
		Body AgendaResponse `json:"body"`
	}, error) {
		day, err := tasks.ParseDay(input.Date, h.e.Now())
		if err != nil {
			return nil, handleError(err)
		}
		filter := domain.Filter(input.Filter)
		if filter != "" && !filter.Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid filter "+input.Filter, nil)
		}
		sortKey := domain.SortKey(input.Sort)
		if sortKey != "" && !sortKey.Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid sort "+input.Sort, nil)
		}
		_ = h.hydrated(ctx)
		snap := h.e.Tasks.Snapshot()
		if filter == "" {
			filter = snap.Filter
		}
		if sortKey == "" {
			sortKey = snap.Sort
		}
		items := h.e.Agenda(day, filter, sortKey)
		if items == nil {
			items = []domain.Task{}
		}
		return &struct {
			Body AgendaResponse `json:"body"`
		}{Body: AgendaResponse{Date: day.Format(dateLayout), Filter: string(filter), Sort: string(sortKey), Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "calendar",
		Method:      http.MethodGet,
		Path:        "/calendar",
		Summary:     "Month grid around an anchor day",
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Anchor string `query:"anchor" doc:"YYYY-MM-DD, defaults to today"`
	}) (*struct {
		Body CalendarResponse `json:"body"`
	}, error) {
		anchor, err := tasks.ParseDay(input.Anchor, h.e.Now())
		if err != nil {
			return nil, handleError(err)
		}
		_ = h.hydrated(ctx)
		return &struct {
			Body CalendarResponse `json:"body"`
		}{Body: calendarResponse(anchor, h.e.Tasks.Snapshot().Items)}, nil
	})
}

func (h handlers) registerVideos(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-videos",
		Method:      http.MethodGet,
		Path:        "/videos",
		Summary:     "Video catalog with download status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body VideoListResponse `json:"body"`
	}, error) {
		items, err := h.e.Catalog(ctx)
		resp := VideoListResponse{Items: items}
		if err != nil {
			resp.Error = err.Error()
		}
		return &struct {
			Body VideoListResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-videos",
		Method:      http.MethodPost,
		Path:        "/videos/refresh",
		Summary:     "Refetch the video catalog",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body VideoListResponse `json:"body"`
	}, error) {
		if err := h.e.Videos.FetchCatalog(ctx); err != nil {
			return nil, handleError(err)
		}
		items, err := h.e.Catalog(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VideoListResponse `json:"body"`
		}{Body: VideoListResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "download-video",
		Method:      http.MethodPost,
		Path:        "/videos/{id}/download",
		Summary:     "Download a video for offline playback",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		ID          string `path:"id"`
		OnCollision string `query:"on_collision" doc:"cancel or replace; defaults to downloads.on_collision"`
	}) (*struct {
		Body DownloadResponse `json:"body"`
	}, error) {
		var opts download.Options
		if input.OnCollision != "" {
			r, err := download.ParseResolution(input.OnCollision)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
			}
			opts.Resolver = download.StaticResolver(r)
		}
		res, err := h.e.Download(ctx, input.ID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		h.logger.Printf("server: download %s by %s ended in %s", input.ID, subjectFromContext(ctx), res.State)
		return &struct {
			Body DownloadResponse `json:"body"`
		}{Body: DownloadResponse{VideoID: input.ID, Result: res}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "video-source",
		Method:      http.MethodGet,
		Path:        "/videos/{id}/source",
		Summary:     "Playback source for a video",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body SourceResponse `json:"body"`
	}, error) {
		src, err := h.e.PlaybackSource(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SourceResponse `json:"body"`
		}{Body: SourceResponse{VideoID: input.ID, Kind: string(src.Kind), Location: src.Location}}, nil
	})
}

func (h handlers) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" doc:"task, video or network"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		items, err := h.e.Events.Latest(ctx, normalizeLimit(input.Limit), events.Filter{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: EventListResponse{Items: items}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	return nil
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func strPtrValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
