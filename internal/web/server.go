package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/beautify/internal/config"
	"github.com/hpungsan/beautify/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates and configures the HTTP server for the Beautify web UI.
// Open sessions are cancelled when the server shuts down.
func NewServer(db *sql.DB, cfg *config.Config, version, bind string, port int) *http.Server {
	h := newHandlers(db, cfg, version)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           securityHeaders(newMux(h)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(h.Close)
	return srv
}

func newHandlers(db *sql.DB, cfg *config.Config, version string) *Handlers {
	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create template sub-FS")
	}

	return &Handlers{
		db:       db,
		cfg:      cfg,
		renderer: NewRenderer(templateSub, version),
		sessions: ops.NewRegistry(db, cfg),
	}
}

func newMux(h *Handlers) *http.ServeMux {
	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create static sub-FS")
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/effects", http.StatusFound)
	})
	mux.HandleFunc("GET /effects", h.HandleEffects)
	mux.HandleFunc("GET /history", h.HandleHistory)
	mux.HandleFunc("POST /history/purge", h.HandlePurge)
	mux.HandleFunc("POST /sessions", h.HandleSessionOpen)
	mux.HandleFunc("GET /sessions/{id}", h.HandleSession)
	mux.HandleFunc("POST /sessions/{id}/adjust", h.HandleAdjust)
	mux.HandleFunc("POST /sessions/{id}/effect", h.HandleEffect)
	mux.HandleFunc("POST /sessions/{id}/opacity", h.HandleOpacity)
	mux.HandleFunc("POST /sessions/{id}/category", h.HandleCategory)
	mux.HandleFunc("POST /sessions/{id}/accept", h.HandleAccept)
	mux.HandleFunc("POST /sessions/{id}/cancel", h.HandleCancel)
	mux.HandleFunc("GET /sessions/{id}/preview.png", h.HandlePreview)
	mux.HandleFunc("GET /sessions/{id}/thumbs/{category}/{file}", h.HandleThumbnail)

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return mux
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info().Str("addr", srv.Addr).Msgf("Beautify UI running at http://%s", srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn().Msg("Server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
