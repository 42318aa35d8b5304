package server

import (
	"context"
	"crypto/rand"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"github.com/chaos-io/rembg-web/blob"
	"github.com/chaos-io/rembg-web/config"
	"github.com/chaos-io/rembg-web/workflow"
)

const (
	flashSessionName = "rembg_flash"
	flashMaxAge      = 10 * time.Minute

	// uploads above this multiple of the advertised limit are refused outright
	uploadHardLimitFactor = 4
)

//go:embed templates/index.html
var templatesFS embed.FS

// Controller is the workflow surface the HTTP handlers drive.
type Controller interface {
	SelectImage(ctx context.Context, name, contentType string, r io.Reader) error
	RemoveBackground(ctx context.Context) error
	Download(ctx context.Context) (*workflow.Attachment, bool)
	Reset(ctx context.Context) error
	Snapshot(ctx context.Context) workflow.Snapshot
	Blob(ref blob.Ref) (blob.Object, bool)
}

type Server struct {
	engine *gin.Engine
	http   *http.Server
	config *config.Config
	ctrl   Controller
	flash  *sessions.CookieStore
	page   *template.Template
}

func NewServer(cfg *config.Config, ctrl Controller) (*Server, error) {
	page, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse index template: %w", err)
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		// Flash cookies then only survive until restart, which is all they need.
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
	}
	flash := sessions.NewCookieStore(secret)
	flash.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(flashMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(requestID(), requestLogger(), gin.Recovery())
	engine.MaxMultipartMemory = cfg.MaxUploadBytes

	srv := &Server{
		engine: engine,
		config: cfg,
		ctrl:   ctrl,
		flash:  flash,
		page:   page,
	}
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) uploadHardLimit() int64 {
	return s.config.MaxUploadBytes * uploadHardLimitFactor
}
