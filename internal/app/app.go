// Package app wires the trainer daemon together: the detector stream, the
// telemetry buffers, the session controller, the local journal, and the
// HTTP server. Run blocks until the context is cancelled.
package app

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/surgitrack/trainerd/internal/catalog"
	"github.com/surgitrack/trainerd/internal/config"
	"github.com/surgitrack/trainerd/internal/demo"
	"github.com/surgitrack/trainerd/internal/hooks"
	"github.com/surgitrack/trainerd/internal/server"
	"github.com/surgitrack/trainerd/internal/session"
	"github.com/surgitrack/trainerd/internal/store"
	"github.com/surgitrack/trainerd/internal/stream"
	"github.com/surgitrack/trainerd/internal/telemetry"
)

// frameQueueSize bounds the hand-off between the stream reader and the
// pipeline. Frames past it are dropped rather than blocking the reader.
const frameQueueSize = 64

// Options holds everything App needs to run.
type Options struct {
	Logger *log.Logger
	Cfg    config.Config
	Store  *store.Store

	// Bind overrides cfg.Server.Bind when non-empty.
	Bind string
}

// App is the composition root for the trainer daemon.
type App struct {
	log   *log.Logger
	cfg   config.Config
	bind  string
	store *store.Store

	hub        *server.Hub
	history    *telemetry.History
	presence   *telemetry.Presence
	catalog    *catalog.Client
	controller *session.Controller
	stream     *stream.Client
	hooks      *hooks.Dispatcher

	frames chan []byte

	server     *http.Server
	demoServer *http.Server
}

// storeJournal adapts the SQLite store to the controller's journal.
type storeJournal struct {
	store *store.Store
}

func (j *storeJournal) RecordResult(res session.SavedResult) error {
	return j.store.Results().Create(&store.Result{
		ID:            res.SessionID,
		ProcedureID:   res.ProcedureID,
		ProcedureName: res.ProcedureName,
		Marks:         res.Marks,
		TotalStages:   res.TotalStages,
		Score:         res.Score,
		RemoteID:      res.RemoteID,
		CompletedAt:   res.CompletedAt,
	})
}

// New assembles the daemon. In demo mode the catalog client and detector
// stream both point at the embedded demo backend instead of cfg's URLs.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	a := &App{
		log:      logger,
		cfg:      opts.Cfg,
		bind:     opts.Bind,
		store:    opts.Store,
		hub:      server.NewHub(),
		history:  telemetry.NewHistory(opts.Cfg.Detector.HistorySize),
		presence: telemetry.NewPresence(),
		frames:   make(chan []byte, frameQueueSize),
	}

	catalogURL := opts.Cfg.Catalog.BaseURL
	detectorURL := opts.Cfg.Detector.URL
	if opts.Cfg.Demo.Enabled {
		catalogURL = "http://" + opts.Cfg.Demo.Bind
		detectorURL = "ws://" + opts.Cfg.Demo.Bind + "/ws/detection"
	}

	a.catalog = catalog.New(catalogURL)

	if dir := opts.Cfg.Hooks.Dir; dir != "" {
		manager := hooks.NewManager(dir)
		if err := manager.Discover(); err != nil {
			logger.Printf("hook discovery failed: %v", err)
		} else {
			a.hooks = hooks.NewDispatcher(manager,
				time.Duration(opts.Cfg.Hooks.TimeoutMS)*time.Millisecond, logger)
			logger.Printf("loaded %d hooks from %s", len(manager.List()), dir)
		}
	}

	var journal session.Journal
	if opts.Store != nil {
		journal = &storeJournal{store: opts.Store}
	}
	a.controller = session.NewController(session.Config{
		Catalog: a.catalog,
		Results: a.catalog,
		Journal: journal,
		Logger:  logger,
		OnEvent: func(ev session.Event) {
			a.hub.BroadcastJSON(ev)
			if a.hooks != nil {
				a.hooks.Dispatch(ev.Type, ev)
			}
			if ev.Type == "session_started" && a.store != nil {
				if err := a.store.Settings().Set("last_procedure_id", strconv.Itoa(ev.ProcedureID)); err != nil {
					logger.Printf("persisting last procedure: %v", err)
				}
			}
		},
	})

	a.stream = stream.New(stream.Config{
		URL:       detectorURL,
		BaseDelay: time.Duration(opts.Cfg.Detector.BackoffBaseMS) * time.Millisecond,
		MaxDelay:  time.Duration(opts.Cfg.Detector.BackoffMaxMS) * time.Millisecond,
		Logger:    logger,
		OnFrame: func(raw []byte) {
			select {
			case a.frames <- raw:
			default:
				logger.Printf("frame queue full, dropping frame")
			}
		},
		OnState: func(st stream.State) {
			a.hub.BroadcastJSON(map[string]any{
				"type":      "connection",
				"connected": st.Connected,
				"attempt":   st.Attempt,
			})
		},
	})

	return a
}

// Run starts the demo backend (when enabled), the WebSocket hub, the frame
// pipeline, the detector stream, and the HTTP server. It blocks until ctx
// is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" {
		bind = a.cfg.Server.Bind
	}

	if a.cfg.Demo.Enabled {
		if err := a.startDemo(ctx); err != nil {
			return err
		}
	}

	go a.hub.Run(ctx)
	go a.runPipeline(ctx)

	a.stream.Open()
	defer a.stream.Close()

	if a.cfg.Detector.AutoStartCamera {
		if err := a.catalog.CameraStart(ctx); err != nil {
			a.log.Printf("camera auto-start failed: %v", err)
		}
	}

	srv := server.New(server.Config{
		StaticDir:   a.cfg.Server.StaticDir,
		Store:       a.store,
		Controller:  a.controller,
		Catalog:     a.catalog,
		History:     a.history,
		Presence:    a.presence,
		Hub:         a.hub,
		StreamState: a.stream.State,
	})

	a.server = &http.Server{
		Addr:              bind,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	a.log.Printf("listening on http://%s", bind)

	go func() {
		<-ctx.Done()
		a.log.Printf("shutdown requested")
		_ = a.server.Shutdown(context.Background())
	}()

	return a.server.Serve(ln)
}

// startDemo launches the embedded demo backend on its own listener.
func (a *App) startDemo(ctx context.Context) error {
	backend := demo.New(time.Duration(a.cfg.Demo.IntervalMS) * time.Millisecond)
	a.demoServer = &http.Server{
		Addr:              a.cfg.Demo.Bind,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", a.cfg.Demo.Bind)
	if err != nil {
		return err
	}

	a.log.Printf("demo backend listening on http://%s", a.cfg.Demo.Bind)

	go func() {
		<-ctx.Done()
		_ = a.demoServer.Shutdown(context.Background())
	}()
	go func() {
		if err := a.demoServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			a.log.Printf("demo backend: %v", err)
		}
	}()

	return nil
}
