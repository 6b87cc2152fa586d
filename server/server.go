// Package server exposes the relay over HTTP and websockets with Fiber.
package server

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-relay/config"
	"github.com/mrsingh-rishi/voice-relay/logger"
	"github.com/mrsingh-rishi/voice-relay/metrics"
	"github.com/mrsingh-rishi/voice-relay/workers"
)

// AudioTranscriber consumes an uploaded file and returns its transcript.
// *audio.Lifecycle satisfies it.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, uploadPath string) (string, error)
}

// Options carries the server's collaborators.
type Options struct {
	Config      *config.Config
	Responder   workers.Responder
	Transcriber AudioTranscriber
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Server owns the Fiber app.
type Server struct {
	app         *fiber.App
	cfg         *config.Config
	uploadsRoot string
	responder   workers.Responder
	transcriber AudioTranscriber
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New builds the app and registers every route.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server needs a config")
	}
	if opts.Responder == nil || opts.Transcriber == nil {
		return nil, errors.New("server needs a responder and a transcriber")
	}

	root, err := filepath.Abs(opts.Config.Storage.UploadsDir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve uploads dir")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create uploads dir %s", root)
	}

	s := &Server{
		cfg:         opts.Config,
		uploadsRoot: filepath.Clean(root),
		responder:   opts.Responder,
		transcriber: opts.Transcriber,
		metrics:     opts.Metrics,
		logger:      logger.OrDiscard(opts.Logger).With("component", "server"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "voice-relay",
		BodyLimit:             opts.Config.MaxUploadBytes,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.routes()
	return s, nil
}

// App exposes the Fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on the configured port until Shutdown.
func (s *Server) Listen() error {
	s.logger.Info("listening", slog.String("addr", s.cfg.Addr()))
	return s.app.Listen(s.cfg.Addr())
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	s.app.Use(recover.New())
	s.app.Use(s.corsMiddleware())
	s.app.Use(s.requestLogger())

	s.app.Get("/health", s.health)
	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.handleSocket))

	s.app.Post("/upload-audio", s.uploadAudio)
	s.app.Delete("/uploads/:filename", s.deleteUpload)
	s.app.Static("/uploads", s.uploadsRoot)

	public := s.cfg.Storage.PublicDir
	if public != "" && fileExists(filepath.Join(public, "index.html")) {
		s.app.Static("/", public)
	} else {
		s.app.Get("/", s.banner)
	}
}

func (s *Server) corsMiddleware() fiber.Handler {
	origins := strings.Join(s.cfg.AllowedOrigins, ",")
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, X-Requested-With, Content-Type, Accept, Authorization",
		AllowCredentials: !strings.Contains(origins, "*"),
	})
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.Path()), logger.Err(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
