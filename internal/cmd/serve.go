package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cubeplanet/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a live planet over HTTP and websockets",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("store", "", "Patch store to serve and fall back to for missing patches")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for live patches")
	serveCmd.Flags().String("allowed-origin", "*", "Allowed CORS and websocket origin")
	serveCmd.Flags().Duration("status-interval", time.Second, "Status stream push interval")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.store", "store")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.allowed_origin", "allowed-origin")
	mustBind("serve.status_interval", "status-interval")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	addr := viper.GetString("serve.addr")
	storePath := viper.GetString("serve.store")

	p, err := newPlanet(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	var storeHandler *server.StoreHandler
	if storePath != "" {
		storeHandler, err = server.NewStoreHandler(server.StoreConfig{StorePath: storePath}, logger)
		if err != nil {
			return err
		}
		defer storeHandler.Close()
	}

	live := server.NewLive(p, storeHandler, server.LiveConfig{
		CacheControl:   viper.GetString("serve.cache_control"),
		StatusInterval: viper.GetDuration("serve.status_interval"),
		AllowedOrigin:  viper.GetString("serve.allowed_origin"),
	}, logger)

	srv := &http.Server{Addr: addr, Handler: server.Routes(live, storeHandler), ReadHeaderTimeout: 5 * time.Second}

	logger.Info("planet server listening",
		"addr", addr,
		"store", storePath,
		"max_depth", cfg.LOD.MaxDepth,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sigCh:
		logger.Info("Received interrupt signal, shutting down...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
