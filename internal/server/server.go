// Package server exposes a live planet over HTTP and websockets.
package server

import (
	"net/http"
)

// Routes registers every endpoint on a new mux. store may be nil.
func Routes(live *Live, store *StoreHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/api/status", live.StatusHandler())
	mux.Handle("/api/status/stream", live.StatusStreamHandler())
	mux.Handle("/api/config", live.ConfigHandler())
	mux.Handle("/api/patches", live.PatchesHandler())
	mux.Handle("/api/patches/", live.PatchHandler())
	mux.Handle("/api/regenerate", live.RegenerateHandler())
	mux.Handle("/ws", live.WebSocketHandler())

	if store != nil {
		mux.Handle("/store/patches", store.IndexHandler())
		mux.Handle("/store/patches/", store.Handler())
	}
	return mux
}
