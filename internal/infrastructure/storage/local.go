package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alejandroruanova/preference-engine/internal/core/services/engine"
	"github.com/google/uuid"
)

const assetsDir = "assets"

// LocalStorage writes generated images to the local filesystem
type LocalStorage struct {
	basePath      string
	publicBaseURL string
	logger        *slog.Logger
}

// LocalStorageConfig for local storage
type LocalStorageConfig struct {
	BasePath      string // Base directory for generated assets (e.g., "/var/lib/preference-engine")
	PublicBaseURL string // Prefix of asset URLs handed to clients (e.g., "/assets")
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(cfg *LocalStorageConfig, logger *slog.Logger) (*LocalStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Join(cfg.BasePath, assetsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	public := strings.TrimRight(cfg.PublicBaseURL, "/")
	if public == "" {
		public = "/assets"
	}

	return &LocalStorage{
		basePath:      cfg.BasePath,
		publicBaseURL: public,
		logger:        logger,
	}, nil
}

// Root returns the directory holding per-session asset folders
func (s *LocalStorage) Root() string {
	return filepath.Join(s.basePath, assetsDir)
}

// SaveAsset writes a generated image under the session's folder
func (s *LocalStorage) SaveAsset(ctx context.Context, sessionID uuid.UUID, name string, data []byte) (*engine.StoredAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sessionDir := filepath.Join(s.Root(), sessionID.String())
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}

	// Sanitize filename
	safeName := filepath.Base(name)
	if safeName == "." || safeName == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid asset name %q", name)
	}
	destPath := filepath.Join(sessionDir, safeName)

	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write asset: %w", err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	asset := &engine.StoredAsset{
		Path: destPath,
		URL:  fmt.Sprintf("%s/%s/%s", s.publicBaseURL, sessionID, safeName),
		Size: int64(len(data)),
		Hash: hash,
	}

	s.logger.Info("asset stored",
		slog.String("session_id", sessionID.String()),
		slog.String("filename", safeName),
		slog.String("content_type", getContentType(safeName)),
		slog.Int64("size", asset.Size),
		slog.String("hash", hash))

	return asset, nil
}

// GetAsset reads a stored asset and returns it with its content type
func (s *LocalStorage) GetAsset(ctx context.Context, sessionID uuid.UUID, name string) ([]byte, string, error) {
	filePath := filepath.Join(s.Root(), sessionID.String(), filepath.Base(name))

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("asset not found: %s/%s: %w", sessionID, name, os.ErrNotExist)
		}
		return nil, "", fmt.Errorf("failed to read asset: %w", err)
	}

	return data, getContentType(name), nil
}

// CleanupOldFiles removes session folders not modified within olderThan
func (s *LocalStorage) CleanupOldFiles(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoffTime := time.Now().Add(-olderThan)

	entries, err := os.ReadDir(s.Root())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read asset directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.IsDir() {
			continue
		}

		dirPath := filepath.Join(s.Root(), entry.Name())
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("failed to get file info",
				slog.String("path", dirPath),
				slog.Any("error", err))
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			if err := os.RemoveAll(dirPath); err != nil {
				s.logger.Warn("failed to remove directory",
					slog.String("path", dirPath),
					slog.Any("error", err))
				continue
			}
			removed++
			s.logger.Debug("removed old directory",
				slog.String("path", dirPath),
				slog.Time("mod_time", info.ModTime()))
		}
	}

	s.logger.Info("cleanup completed",
		slog.Duration("older_than", olderThan),
		slog.Int("removed", removed))

	return removed, nil
}

// getContentType returns the content type based on file extension
func getContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
