package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"daybook/internal/app"
	"daybook/internal/config"
	"daybook/internal/domain"
	"daybook/internal/download"
	"daybook/internal/engine"
	"daybook/internal/events"
	"daybook/internal/server"
	"daybook/internal/tasks"
	"daybook/internal/view"
)

const dueLayout = "2006-01-02 15:04"

var out io.Writer = os.Stdout

var rootCmd = &cobra.Command{
	Use:   "daybook",
	Short: "Daybook CLI",
	Long: `Daybook keeps a dated task agenda and an offline video shelf.
- Tasks: seeded once from the remote todo list, then kept locally in the workspace.
- Agenda: the tasks due on one day, filtered by completion and sorted by time or priority.
- Calendar: the month grid around a day, with task counts.
- Videos: the remote catalog; downloads land in the workspace media directory and play from there.
- Event log: every change, view with 'daybook log tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DAYBOOK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("config", "", "config file (defaults to <workspace>/daybook.yml)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(agendaCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(videoCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config lives in daybook.yml: remote endpoints, media directory, reachability probe, download policy and server settings.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default daybook.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"), viper.GetString("config"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.ResolveConfig(viper.GetString("workspace"), viper.GetString("config"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "config OK")
			return nil
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskToggleCmd())
	task.AddCommand(taskPriorityCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var title, description, due, priority, color string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				now := e.Now()
				dueAt, err := tasks.ParseDue(due, now)
				if err != nil {
					return err
				}
				if err := tasks.ValidateSubmission(title, dueAt, now); err != nil {
					return err
				}
				p, err := domain.ParsePriority(priority)
				if err != nil {
					return err
				}
				if err := e.Tasks.Hydrate(ctx); err != nil {
					return err
				}
				t, err := e.Tasks.Add(ctx, tasks.Input{
					Title:       title,
					Description: description,
					DueDate:     dueAt,
					Priority:    p,
					Color:       color,
				})
				if err != nil {
					return err
				}
				return printTasks([]domain.Task{t})
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&priority, "priority", "low", "low, medium or high")
	cmd.Flags().StringVar(&color, "color", "", "card color (defaults to "+domain.DefaultColor+")")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := domain.Filter(filter)
			if !f.Valid() {
				return fmt.Errorf("invalid filter %q", filter)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Tasks.Hydrate(ctx); err != nil {
					return err
				}
				return printTasks(view.FilterTasks(e.Tasks.Snapshot().Items, f))
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "all, completed or incomplete")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, description, due, priority, color string
	var completed bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Tasks.Hydrate(ctx); err != nil {
					return err
				}
				t, ok := e.Tasks.Get(id)
				if !ok {
					return fmt.Errorf("task %d not found", id)
				}
				now := e.Now()
				flags := cmd.Flags()
				if flags.Changed("title") {
					t.Title = title
				}
				if flags.Changed("description") {
					t.Description = description
				}
				if flags.Changed("color") {
					t.Color = color
				}
				if flags.Changed("completed") {
					t.Completed = completed
				}
				if flags.Changed("priority") {
					if t.Priority, err = domain.ParsePriority(priority); err != nil {
						return err
					}
				}
				validateAt := t.DueDate
				if flags.Changed("due") {
					if t.DueDate, err = tasks.ParseDue(due, now); err != nil {
						return err
					}
					validateAt = now
				}
				if err := tasks.ValidateSubmission(t.Title, t.DueDate, validateAt); err != nil {
					return err
				}
				if _, err := e.Tasks.Update(ctx, t); err != nil {
					return err
				}
				return printTasks([]domain.Task{t})
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium or high")
	cmd.Flags().StringVar(&color, "color", "", "card color")
	cmd.Flags().BoolVar(&completed, "completed", false, "completion state")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Tasks.Hydrate(ctx); err != nil {
					return err
				}
				found := e.Tasks.Delete(ctx, id)
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": id, "deleted": found})
				}
				if !found {
					return fmt.Errorf("task %d not found", id)
				}
				fmt.Fprintf(out, "deleted %d\n", id)
				return nil
			})
		},
	}
}

func taskToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip task completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Tasks.Hydrate(ctx); err != nil {
					return err
				}
				t, ok := e.Tasks.Toggle(ctx, id)
				if !ok {
					return fmt.Errorf("task %d not found", id)
				}
				return printTasks([]domain.Task{t})
			})
		},
	}
}

func taskPriorityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "priority <id> <low|medium|high>",
		Short: "Set task priority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			p, err := domain.ParsePriority(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Tasks.Hydrate(ctx); err != nil {
					return err
				}
				ok, err := e.Tasks.SetPriority(ctx, id, p)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("task %d not found", id)
				}
				t, _ := e.Tasks.Get(id)
				return printTasks([]domain.Task{t})
			})
		},
	}
}

func agendaCmd() *cobra.Command {
	var date, filter, sortKey string
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Tasks due on a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				day, err := tasks.ParseDay(date, e.Now())
				if err != nil {
					return err
				}
				if err := e.Tasks.SetFilter(domain.Filter(filter)); err != nil {
					return err
				}
				if err := e.Tasks.SetSort(domain.SortKey(sortKey)); err != nil {
					return err
				}
				if err := e.Tasks.Hydrate(ctx); err != nil {
					return err
				}
				return printTasks(e.Agenda(day, "", ""))
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&filter, "filter", string(domain.FilterAll), "all, completed or incomplete")
	cmd.Flags().StringVar(&sortKey, "sort", string(domain.SortDate), "date or priority")
	return cmd
}

func calendarCmd() *cobra.Command {
	var anchor string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Month grid with task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				day, err := tasks.ParseDay(anchor, e.Now())
				if err != nil {
					return err
				}
				if err := e.Tasks.Hydrate(ctx); err != nil {
					return err
				}
				items := e.Tasks.Snapshot().Items
				grid := view.MonthGrid(day)
				if viper.GetBool("json") {
					type cell struct {
						Date  string `json:"date"`
						Tasks int    `json:"tasks"`
					}
					cells := make([]cell, 0, len(grid))
					for _, d := range grid {
						cells = append(cells, cell{Date: d.Format("2006-01-02"), Tasks: len(view.AgendaFor(items, d, domain.FilterAll))})
					}
					return printJSON(cells)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(out)
				tw.SetTitle(day.Format("January 2006"))
				tw.AppendHeader(table.Row{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"})
				row := table.Row{}
				for _, d := range grid {
					label := strconv.Itoa(d.Day())
					if d.Month() != day.Month() {
						label = "·" + label
					}
					if n := len(view.AgendaFor(items, d, domain.FilterAll)); n > 0 {
						label += fmt.Sprintf(" (%d)", n)
					}
					if view.SameDay(d, day) {
						label = "[" + label + "]"
					}
					row = append(row, label)
					if len(row) == 7 {
						tw.AppendRow(row)
						row = table.Row{}
					}
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&anchor, "anchor", "", "day inside the month (YYYY-MM-DD), defaults to today")
	return cmd
}

func videoCmd() *cobra.Command {
	video := &cobra.Command{
		Use:   "video",
		Short: "Browse and download videos",
	}
	video.AddCommand(videoListCmd())
	video.AddCommand(videoRefreshCmd())
	video.AddCommand(videoDownloadCmd())
	video.AddCommand(videoSourceCmd())
	return video
}

func videoListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the catalog with download status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Videos.HydrateDownloaded(ctx); err != nil {
					return err
				}
				items, err := e.Catalog(ctx)
				if err != nil {
					return err
				}
				return printVideos(items)
			})
		},
	}
}

func videoRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refetch the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Videos.HydrateDownloaded(ctx); err != nil {
					return err
				}
				if err := e.Videos.FetchCatalog(ctx); err != nil {
					return err
				}
				snap := e.Videos.Snapshot()
				return printVideos(view.Catalog(snap.Catalog, snap.Downloaded))
			})
		},
	}
}

func videoDownloadCmd() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a video for offline playback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Videos.HydrateDownloaded(ctx); err != nil {
					return err
				}
				opts := download.Options{
					Progress: func(p download.Progress) {
						if f, ok := p.Fraction(); ok {
							fmt.Fprintf(os.Stderr, "\r%3.0f%%", f*100)
						} else {
							fmt.Fprintf(os.Stderr, "\r%d bytes", p.Written)
						}
					},
				}
				if cmd.Flags().Changed("replace") {
					r := download.Cancel
					if replace {
						r = download.Replace
					}
					opts.Resolver = download.StaticResolver(r)
				}
				res, err := e.Download(ctx, args[0], opts)
				if res.Bytes > 0 || res.State == download.StateFailed {
					fmt.Fprintln(os.Stderr)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				switch {
				case res.Aborted:
					fmt.Fprintln(out, "storage permission denied; nothing downloaded")
				case res.Canceled:
					fmt.Fprintf(out, "%s already downloaded; kept existing file (use --replace to overwrite)\n", args[0])
				default:
					fmt.Fprintf(out, "downloaded %s to %s (%d bytes)\n", args[0], res.Path, res.Bytes)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite an existing file instead of cancelling")
	return cmd
}

func videoSourceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "source <id>",
		Short: "Show where a video plays from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Videos.HydrateDownloaded(ctx); err != nil {
					return err
				}
				src, err := e.PlaybackSource(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(src)
				}
				fmt.Fprintf(out, "%s %s\n", src.Kind, src.Location)
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: task changes, downloads, failed loads and connectivity changes.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var f events.Filter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Events.Latest(ctx, n, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(out)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Payload"})
				for _, evt := range items {
					entity := evt.EntityKind
					if evt.EntityID != "" {
						entity += ":" + evt.EntityID
					}
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, entity, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace()
			if err != nil {
				return err
			}
			defer ws.Close()
			e := ws.Engine
			ctx := cmd.Context()
			if err := e.Start(ctx); err != nil {
				log.Printf("serve: tasks not loaded yet: %v", err)
			}
			if !cmd.Flags().Changed("addr") && ws.Config.Server.Addr != "" {
				addr = ws.Config.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && ws.Config.Server.BasePath != "" {
				basePath = ws.Config.Server.BasePath
			}
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				secret = ws.Config.Server.JWTSecret
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: server.AuthConfig{JWTSecret: secret}, CORSOrigins: ws.Config.Server.CORSOrigins})
			if err != nil {
				return err
			}

			go e.Prober.Run(ctx)
			go server.NewWebhookDispatcher(e.Events, ws.Config.Webhooks, nil).Run(ctx)

			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			auth := "open"
			if secret != "" {
				auth = "bearer JWT"
			}
			fmt.Fprintf(out, "Serving Daybook API on http://%s%s (auth: %s, OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, auth, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path (defaults to server.base_path)")
	cmd.Flags().String("jwt-secret", "", "HS256 secret for bearer auth (or DAYBOOK_JWT_SECRET)")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}

func openWorkspace() (*app.Workspace, error) {
	return app.Open(app.Options{
		Workspace:  viper.GetString("workspace"),
		ConfigPath: viper.GetString("config"),
	})
}

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws.Engine)
}

func parseTaskID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}

func printTasks(items []domain.Task) error {
	if viper.GetBool("json") {
		if items == nil {
			items = []domain.Task{}
		}
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"ID", "Title", "Due", "Priority", "Done", "Color"})
	for _, t := range items {
		done := ""
		if t.Completed {
			done = "x"
		}
		tw.AppendRow(table.Row{t.ID, t.Title, t.DueDate.Local().Format(dueLayout), t.Priority, done, t.Color})
	}
	tw.Render()
	return nil
}

func printVideos(items []view.VideoItem) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"ID", "Title", "Author", "Duration", "Status"})
	for _, v := range items {
		tw.AppendRow(table.Row{v.ID, v.Title, v.Author, v.Duration, v.Status})
	}
	tw.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
