package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/cubeplanet/internal/planet"
	"github.com/MeKo-Tech/cubeplanet/internal/quadtree"
	"github.com/MeKo-Tech/cubeplanet/internal/store"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

// LiveConfig configures the live planet handlers.
type LiveConfig struct {
	CacheControl string
	// StatusInterval is the SSE push period (default: 1s)
	StatusInterval time.Duration
	// AllowedOrigin is sent as Access-Control-Allow-Origin (default: *)
	AllowedOrigin string
}

// Live serves a planet that clients drive by sending viewer states. All
// access to the planet goes through mu.
type Live struct {
	mu       sync.Mutex
	planet   *planet.Planet
	fallback *StoreHandler
	logger   *slog.Logger
	cfg      LiveConfig
	upgrader websocket.Upgrader

	totalTicks    atomic.Int64
	totalBuilt    atomic.Int64
	totalReleased atomic.Int64
	totalFailed   atomic.Int64
	clients       atomic.Int32
	lastTick      atomic.Int64 // unix nanos
}

// Status is the JSON body of /api/status.
type Status struct {
	Planet planet.Stats `json:"planet"`
	Ticks  TickStatus   `json:"ticks"`
}

// TickStatus counts work done since the server started.
type TickStatus struct {
	TotalTicks    int64     `json:"total_ticks"`
	TotalBuilt    int64     `json:"total_built"`
	TotalReleased int64     `json:"total_released"`
	TotalFailed   int64     `json:"total_failed"`
	Clients       int       `json:"clients"`
	LastTick      time.Time `json:"last_tick,omitempty"`
}

// ViewerMessage is what a websocket client sends.
type ViewerMessage struct {
	Position [3]float64 `json:"position"`
	Forward  [3]float64 `json:"forward"`
}

// TickMessage is the reply to a ViewerMessage. The first message on a new
// socket is a snapshot carrying every rendered patch and an empty report.
type TickMessage struct {
	Snapshot bool          `json:"snapshot,omitempty"`
	Report   ReportPayload `json:"report"`
	Meshes   []PatchMesh   `json:"meshes"`
	Stats    planet.Stats  `json:"stats"`
	Error    string        `json:"error,omitempty"`
}

// NewLive wraps a planet. fallback may be nil.
func NewLive(p *planet.Planet, fallback *StoreHandler, cfg LiveConfig, logger *slog.Logger) *Live {
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = time.Second
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}

	return &Live{
		planet:   p,
		fallback: fallback,
		logger:   logger,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return cfg.AllowedOrigin == "*" || r.Header.Get("Origin") == cfg.AllowedOrigin
			},
		},
	}
}

// Tick runs one LOD pass and returns the report with the meshes of every
// patch that became visible: new builds and parents shown again by a merge.
func (l *Live) Tick(v quadtree.Viewer) (*quadtree.Report, []PatchMesh, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	report, err := l.planet.Tick(v)
	if err != nil {
		return nil, nil, err
	}
	l.record(report)

	shown := append(append([]tile.Key{}, report.Built...), report.Shown...)
	meshes := make([]PatchMesh, 0, len(shown))
	for _, k := range shown {
		p := l.planet.Patch(k)
		if p == nil || !p.Visible() || p.Mesh() == nil {
			continue
		}
		meshes = append(meshes, meshPayload(k, p.Mesh()))
	}

	if report.Changed() {
		l.log().Debug("tick",
			"built", len(report.Built),
			"released", len(report.Released),
			"failed", len(report.Failed),
			"ms", time.Since(start).Milliseconds())
	}
	return report, meshes, nil
}

// Snapshot returns the meshes of every patch currently rendered.
func (l *Live) Snapshot() []PatchMesh {
	l.mu.Lock()
	defer l.mu.Unlock()

	meshes := []PatchMesh{}
	l.planet.Walk(func(p *quadtree.Patch) bool {
		if p.Visible() && p.Mesh() != nil {
			meshes = append(meshes, meshPayload(p.Key(), p.Mesh()))
		}
		return true
	})
	return meshes
}

// Regenerate rebuilds the planet from its configuration.
func (l *Live) Regenerate() (*quadtree.Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	report, err := l.planet.Regenerate()
	if err != nil {
		return nil, err
	}
	l.record(report)
	return report, nil
}

func (l *Live) record(r *quadtree.Report) {
	l.totalTicks.Add(1)
	l.totalBuilt.Add(int64(len(r.Built)))
	l.totalReleased.Add(int64(len(r.Released)))
	l.totalFailed.Add(int64(len(r.Failed)))
	l.lastTick.Store(time.Now().UnixNano())
}

// Status returns the current tree statistics and counters.
func (l *Live) Status() Status {
	l.mu.Lock()
	stats := l.planet.Stats()
	l.mu.Unlock()

	status := Status{
		Planet: stats,
		Ticks: TickStatus{
			TotalTicks:    l.totalTicks.Load(),
			TotalBuilt:    l.totalBuilt.Load(),
			TotalReleased: l.totalReleased.Load(),
			TotalFailed:   l.totalFailed.Load(),
			Clients:       int(l.clients.Load()),
		},
	}
	if ns := l.lastTick.Load(); ns != 0 {
		status.Ticks.LastTick = time.Unix(0, ns)
	}
	return status
}

func (l *Live) setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", l.cfg.AllowedOrigin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// StatusHandler returns an HTTP handler for the status endpoint (JSON).
func (l *Live) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.setCORS(w)
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, l.log(), l.Status())
	})
}

// StatusStreamHandler pushes the status as Server-Sent Events.
func (l *Live) StatusStreamHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		l.setCORS(w)

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		ticker := time.NewTicker(l.cfg.StatusInterval)
		defer ticker.Stop()

		l.sendStatusEvent(w, flusher)

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				l.sendStatusEvent(w, flusher)
			}
		}
	})
}

func (l *Live) sendStatusEvent(w http.ResponseWriter, flusher http.Flusher) {
	data, err := json.Marshal(l.Status())
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// ConfigHandler returns the effective configuration as YAML.
func (l *Live) ConfigHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.setCORS(w)

		l.mu.Lock()
		cfg := l.planet.Config()
		l.mu.Unlock()
		if cfg == nil {
			http.Error(w, "planet has no configuration", http.StatusServiceUnavailable)
			return
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			l.log().Error("failed to encode config", "error", err)
			http.Error(w, "failed to encode config", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(out)
	})
}

// PatchesHandler lists the leaves of the live tree.
func (l *Live) PatchesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.setCORS(w)
		w.Header().Set("Cache-Control", l.cfg.CacheControl)

		l.mu.Lock()
		leaves := l.planet.Leaves()
		infos := make([]PatchInfo, 0, len(leaves))
		for _, p := range leaves {
			infos = append(infos, patchInfo(p))
		}
		l.mu.Unlock()

		writeJSON(w, l.log(), infos)
	})
}

// PatchHandler serves /api/patches/{key}.json from the live tree, falling
// back to the patch store when the tree does not hold a mesh for the key.
func (l *Live) PatchHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.setCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		key, ok := parsePatchPath("/api/patches/", r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		l.mu.Lock()
		var payload *PatchMesh
		if p := l.planet.Patch(key); p != nil && p.Mesh() != nil {
			pm := meshPayload(key, p.Mesh())
			payload = &pm
		}
		l.mu.Unlock()

		if payload == nil && l.fallback != nil {
			m, err := l.fallback.Lookup(key)
			switch {
			case err == nil:
				pm := meshPayload(key, m)
				payload = &pm
			case !errors.Is(err, store.ErrNotFound):
				l.log().Error("store fallback failed", "key", key.String(), "error", err)
			}
		}

		if payload == nil {
			http.Error(w, fmt.Sprintf("patch not found: %s", key), http.StatusNotFound)
			return
		}
		w.Header().Set("Cache-Control", l.cfg.CacheControl)
		writeJSON(w, l.log(), payload)
	})
}

// RegenerateHandler rebuilds the planet on POST.
func (l *Live) RegenerateHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.setCORS(w)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		report, err := l.Regenerate()
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, planet.ErrUnconfigured) {
				status = http.StatusServiceUnavailable
			}
			http.Error(w, err.Error(), status)
			return
		}
		l.log().Info("planet regenerated", "built", len(report.Built), "failed", len(report.Failed))
		writeJSON(w, l.log(), reportPayload(report))
	})
}

// WebSocketHandler ticks the planet for every viewer message a client
// sends and replies with the report and the newly built meshes.
func (l *Live) WebSocketHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := l.upgrader.Upgrade(w, r, nil)
		if err != nil {
			l.log().Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		l.clients.Add(1)
		defer l.clients.Add(-1)

		hello := TickMessage{Snapshot: true, Report: reportPayload(nil), Meshes: l.Snapshot()}
		l.mu.Lock()
		hello.Stats = l.planet.Stats()
		l.mu.Unlock()
		if err := conn.WriteJSON(hello); err != nil {
			l.log().Warn("websocket write failed", "error", err)
			return
		}

		for {
			var msg ViewerMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					l.log().Warn("websocket read failed", "error", err)
				}
				return
			}

			reply := l.handleViewer(msg)
			if err := conn.WriteJSON(reply); err != nil {
				l.log().Warn("websocket write failed", "error", err)
				return
			}
		}
	})
}

func (l *Live) handleViewer(msg ViewerMessage) TickMessage {
	viewer := quadtree.Viewer{
		Position: mgl64.Vec3(msg.Position),
		Forward:  mgl64.Vec3(msg.Forward),
	}

	report, meshes, err := l.Tick(viewer)
	reply := TickMessage{Report: reportPayload(report), Meshes: meshes}
	if meshes == nil {
		reply.Meshes = []PatchMesh{}
	}
	if err != nil {
		reply.Error = err.Error()
	}

	l.mu.Lock()
	reply.Stats = l.planet.Stats()
	l.mu.Unlock()
	return reply
}

func (l *Live) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return slog.Default()
}
