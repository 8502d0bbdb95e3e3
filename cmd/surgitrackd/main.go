// Command surgitrackd is the SurgiTrack trainer daemon. It consumes the
// detection backend's live tool feed, drives procedure-stage progression,
// journals saved results locally, and exposes the whole thing over a local
// HTTP and WebSocket API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/surgitrack/trainerd/internal/app"
	"github.com/surgitrack/trainerd/internal/config"
	"github.com/surgitrack/trainerd/internal/store"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/surgitrack/trainerd.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address override")
		demoMode   = pflag.Bool("demo", false, "Run against the embedded demo backend")
	)
	pflag.Parse()

	// A .env alongside the binary can override SURGITRACK_* settings.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *demoMode {
		cfg.Demo.Enabled = true
	}

	logger := log.New(os.Stdout, "surgitrackd ", log.LstdFlags|log.Lmicroseconds)

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		logger.Fatalf("creating data directory: %v", err)
	}

	st, err := store.New(filepath.Join(cfg.Data.Dir, "trainer.db"))
	if err != nil {
		logger.Fatalf("opening journal: %v", err)
	}
	defer st.Close()

	fmt.Println("SurgiTrack Trainer Daemon")

	a := app.New(app.Options{
		Logger: logger,
		Cfg:    cfg,
		Store:  st,
		Bind:   *bind,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("surgitrackd failed: %v", err)
	}
}
