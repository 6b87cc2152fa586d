package server

import (
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/mrsingh-rishi/voice-relay/call"
	"github.com/mrsingh-rishi/voice-relay/logger"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "ok",
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		"environment": s.cfg.Environment,
		"port":        s.cfg.Port,
		"hasOpenAI":   s.cfg.HasOpenAI(),
		"hasPinecone": s.cfg.HasPinecone(),
		"goVersion":   runtime.Version(),
	})
}

func (s *Server) banner(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":     "Voice relay backend is running!",
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		"environment": s.cfg.Environment,
		"endpoints":   []string{"/health", "/ws", "/upload-audio", "/uploads/*", "/metrics"},
	})
}

func (s *Server) handleSocket(ws *websocket.Conn) {
	session, err := call.NewSession(ws, s.responder, s.logger)
	if err != nil {
		s.logger.Error("could not start chat session", logger.Err(err))
		_ = ws.Close()
		return
	}
	session.Start()
}

func (s *Server) uploadAudio(c *fiber.Ctx) error {
	file, err := c.FormFile("audio")
	if err != nil || file == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No file uploaded"})
	}

	path := filepath.Join(s.uploadsRoot, "upload-"+uuid.NewString())
	if err := c.SaveFile(file, path); err != nil {
		s.logger.Error("could not store upload", logger.Err(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Transcription failed"})
	}
	s.logger.Info("audio uploaded",
		slog.String("file", filepath.Base(path)),
		slog.String("original", file.Filename),
		slog.Int64("bytes", file.Size),
	)

	transcription, err := s.transcriber.Transcribe(c.UserContext(), path)
	if err != nil {
		s.logger.Error("transcription failed", logger.Err(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Transcription failed"})
	}
	return c.JSON(fiber.Map{"transcription": transcription})
}

func (s *Server) deleteUpload(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("filename"))
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Access denied"})
	}
	path, ok := resolveWithin(s.uploadsRoot, name)
	if !ok {
		s.logger.Warn("rejected deletion outside uploads", slog.String("filename", name))
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Access denied"})
	}

	if err := os.Remove(path); err != nil {
		s.logger.Error("failed to delete audio file", slog.String("filename", name), logger.Err(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete file"})
	}
	s.logger.Info("deleted audio file", slog.String("filename", name))
	return c.JSON(fiber.Map{"success": true})
}

// resolveWithin joins name onto root and reports whether the result stays
// strictly inside root.
func resolveWithin(root, name string) (string, bool) {
	if name == "" || strings.ContainsRune(name, 0) {
		return "", false
	}
	path := filepath.Join(root, name)
	if !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}
