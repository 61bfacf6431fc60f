package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
	"github.com/MeKo-Tech/cubeplanet/internal/store"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

// StoreHandler serves patch meshes from a patch store.
type StoreHandler struct {
	reader       *store.Reader
	logger       *slog.Logger
	cacheControl string
}

// StoreConfig configures the store handler.
type StoreConfig struct {
	StorePath    string
	CacheControl string
}

// NewStoreHandler opens the store read-only.
func NewStoreHandler(cfg StoreConfig, logger *slog.Logger) (*StoreHandler, error) {
	reader, err := store.OpenReader(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open patch store: %w", err)
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "public, max-age=3600"
	}

	return &StoreHandler{
		reader:       reader,
		logger:       logger,
		cacheControl: cfg.CacheControl,
	}, nil
}

// Handler returns the HTTP handler function for /store/patches/{key}.json.
func (h *StoreHandler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := parsePatchPath("/store/patches/", r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.servePatch(w, key)
	}
}

// Lookup reads one mesh from the store.
func (h *StoreHandler) Lookup(key tile.Key) (*mesh.Mesh, error) {
	return h.reader.ReadPatch(key)
}

// servePatch writes a stored patch as JSON.
func (h *StoreHandler) servePatch(w http.ResponseWriter, key tile.Key) {
	m, err := h.reader.ReadPatch(key)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "patch not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log().Error("Failed to read patch", "key", key.String(), "error", err)
		http.Error(w, "failed to read patch", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)
	writeJSON(w, h.log(), meshPayload(key, m))
}

// IndexHandler lists the keys held by the store.
func (h *StoreHandler) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := h.reader.Keys()
		if err != nil {
			h.log().Error("Failed to list patches", "error", err)
			http.Error(w, "failed to list patches", http.StatusInternalServerError)
			return
		}
		meta, err := h.reader.Metadata()
		if err != nil {
			h.log().Error("Failed to read metadata", "error", err)
			http.Error(w, "failed to read metadata", http.StatusInternalServerError)
			return
		}

		names := make([]string, 0, len(keys))
		for _, k := range keys {
			names = append(names, k.String())
		}
		writeJSON(w, h.log(), struct {
			Metadata map[string]string `json:"metadata"`
			Patches  []string          `json:"patches"`
		}{meta.ToMap(), names})
	}
}

// Close closes the store reader.
func (h *StoreHandler) Close() error {
	return h.reader.Close()
}

func (h *StoreHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
