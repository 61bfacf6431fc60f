package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cubeplanet/internal/config"
	"github.com/MeKo-Tech/cubeplanet/internal/planet"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
	"github.com/MeKo-Tech/cubeplanet/internal/store"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

func testPlanet(t *testing.T) *planet.Planet {
	t.Helper()
	cfg := config.Default()
	cfg.Planet.MinResolution = 3
	cfg.Planet.MaxResolution = 5
	cfg.LOD.MaxDepth = 1
	cfg.Atmosphere.Enabled = false

	p, err := planet.New(cfg)
	require.NoError(t, err)
	_, err = p.Regenerate()
	require.NoError(t, err)
	return p
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestParsePatchPath(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		key, ok := parsePatchPath("/api/patches/", "/api/patches/f2_z3_x1_y5.json")
		if !ok {
			t.Fatalf("expected ok")
		}
		if key != tile.NewKey(sphere.FaceLeft, 3, 1, 5) {
			t.Fatalf("unexpected key: %s", key)
		}
	})

	t.Run("reject non-json", func(t *testing.T) {
		if _, ok := parsePatchPath("/api/patches/", "/api/patches/f2_z3_x1_y5.png"); ok {
			t.Fatalf("expected not ok")
		}
	})

	t.Run("reject other prefix", func(t *testing.T) {
		if _, ok := parsePatchPath("/api/patches/", "/tiles/f2_z3_x1_y5.json"); ok {
			t.Fatalf("expected not ok")
		}
	})

	t.Run("reject out of range", func(t *testing.T) {
		if _, ok := parsePatchPath("/api/patches/", "/api/patches/f0_z1_x2_y0.json"); ok {
			t.Fatalf("expected not ok")
		}
	})
}

func TestRoutes(t *testing.T) {
	live := NewLive(testPlanet(t), nil, LiveConfig{}, nil)
	srv := httptest.NewServer(Routes(live, nil))
	defer srv.Close()

	resp, body := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))

	resp, body = get(t, srv, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status Status
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "ready", status.Planet.State)
	assert.Equal(t, 6, status.Planet.Leaves)

	resp, body = get(t, srv, "/api/patches")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var infos []PatchInfo
	require.NoError(t, json.Unmarshal(body, &infos))
	assert.Len(t, infos, 6)

	resp, body = get(t, srv, "/api/patches/f4_z0_x0_y0.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pm PatchMesh
	require.NoError(t, json.Unmarshal(body, &pm))
	assert.Equal(t, 3, pm.Resolution)
	assert.Len(t, pm.Positions, 27)
	assert.Len(t, pm.Colors, 36)
	assert.Len(t, pm.Indices, 24)

	resp, _ = get(t, srv, "/api/patches/f4_z1_x0_y0.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = get(t, srv, "/api/config")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "subdivide_distance")

	resp, _ = get(t, srv, "/api/regenerate")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err := http.Post(srv.URL+"/api/regenerate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocketTick(t *testing.T) {
	live := NewLive(testPlanet(t), nil, LiveConfig{}, nil)
	srv := httptest.NewServer(Routes(live, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The socket opens with the six root meshes.
	var hello TickMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.True(t, hello.Snapshot)
	assert.Len(t, hello.Meshes, 6)
	assert.Empty(t, hello.Report.Built)

	require.NoError(t, conn.WriteJSON(ViewerMessage{Position: [3]float64{0, 10, 0}}))

	var reply TickMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.False(t, reply.Snapshot)
	assert.Empty(t, reply.Error)
	assert.Equal(t, 6, reply.Report.Subdivided)
	assert.Len(t, reply.Report.Built, 24)
	assert.Len(t, reply.Meshes, 24)
	assert.Equal(t, 24, reply.Stats.Leaves)

	// A far viewer merges everything back.
	require.NoError(t, conn.WriteJSON(ViewerMessage{Position: [3]float64{0, 1000, 0}}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, 6, reply.Report.Merged)
	assert.Len(t, reply.Report.Released, 24)
	// The roots are visible again and their meshes come along.
	assert.Len(t, reply.Report.Shown, 6)
	require.Len(t, reply.Meshes, 6)
	for _, m := range reply.Meshes {
		k, err := tile.ParseKey(m.Key)
		require.NoError(t, err)
		assert.Zero(t, k.Z)
	}

	assert.EqualValues(t, 2, live.Status().Ticks.TotalTicks)
}

func TestStoreFallback(t *testing.T) {
	p := testPlanet(t)
	stored := tile.NewKey(sphere.FaceBack, 1, 1, 1)
	root := p.Patch(tile.Root(sphere.FaceBack))
	require.NotNil(t, root)

	path := filepath.Join(t.TempDir(), "planet.db")
	w, err := store.New(path, store.Metadata{Name: "test"})
	require.NoError(t, err)
	require.NoError(t, w.WritePatch(stored, root.Mesh()))
	require.NoError(t, w.Close())

	sh, err := NewStoreHandler(StoreConfig{StorePath: path}, nil)
	require.NoError(t, err)
	defer sh.Close()

	live := NewLive(p, sh, LiveConfig{}, nil)
	srv := httptest.NewServer(Routes(live, sh))
	defer srv.Close()

	resp, body := get(t, srv, "/api/patches/"+stored.String()+".json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pm PatchMesh
	require.NoError(t, json.Unmarshal(body, &pm))
	assert.Equal(t, stored.String(), pm.Key)

	resp, body = get(t, srv, "/store/patches")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), stored.String())

	resp, _ = get(t, srv, "/store/patches/"+stored.String()+".json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = get(t, srv, "/store/patches/f0_z0_x0_y0.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
