package cmd

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/image/draw"

	"github.com/MeKo-Tech/cubeplanet/internal/colorize"
	"github.com/MeKo-Tech/cubeplanet/internal/noise"
	"github.com/MeKo-Tech/cubeplanet/internal/preview"
	"github.com/MeKo-Tech/cubeplanet/internal/quadtree"
	"github.com/MeKo-Tech/cubeplanet/internal/raster"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
	"github.com/MeKo-Tech/cubeplanet/internal/worker"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render the six cube faces into a cube-cross PNG",
	RunE:  runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().Int("size", 256, "Face size in pixels")
	previewCmd.Flags().String("mode", string(preview.ModeSurface), "Shading mode: surface or elevation")
	previewCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	previewCmd.Flags().Bool("progress", true, "Show progress bar")
	previewCmd.Flags().StringP("output", "o", "planet.png", "Output PNG file")
	previewCmd.Flags().Int("thumbnail", 0, "Also write a thumbnail of this width (0 disables)")
	previewCmd.Flags().Bool("outline", false, "Draw quadtree leaf outlines for --viewer")
	previewCmd.Flags().Float64("shore", 0, "Width in pixels of the coastline foam band (0 disables)")
	previewCmd.Flags().String("viewer", "0,0,12", "Viewer position used for --outline: x,y,z")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, previewCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("preview.size", "size")
	mustBind("preview.mode", "mode")
	mustBind("preview.workers", "workers")
	mustBind("preview.progress", "progress")
	mustBind("preview.output", "output")
	mustBind("preview.thumbnail", "thumbnail")
	mustBind("preview.outline", "outline")
	mustBind("preview.shore", "shore")
	mustBind("preview.viewer", "viewer")
}

func runPreview(cmd *cobra.Command, args []string) error {
	size := viper.GetInt("preview.size")
	workers := viper.GetInt("preview.workers")
	showProgress := viper.GetBool("preview.progress")
	output := viper.GetString("preview.output")
	thumbWidth := viper.GetInt("preview.thumbnail")
	outline := viper.GetBool("preview.outline")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mode, err := preview.ParseMode(viper.GetString("preview.mode"))
	if err != nil {
		return err
	}
	if size < 1 {
		return fmt.Errorf("--size must be positive, got %d", size)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	field, err := noise.New(cfg.NoiseParams(), cfg.Planet.Radius, cfg.BaseLandOffset())
	if err != nil {
		return fmt.Errorf("failed to create noise field: %w", err)
	}
	colorParams := cfg.ColorParams()
	renderer, err := preview.NewRenderer(field, colorize.New(colorParams), mode)
	if err != nil {
		return err
	}
	if shore := viper.GetFloat64("preview.shore"); shore > 0 {
		renderer.SetShore(preview.ShoreOptions{
			Level:  colorParams.WaterThreshold,
			Radius: shore,
			Color:  color.NRGBA{R: 240, G: 248, B: 255, A: 255},
		})
	}

	logger.Info("Rendering preview",
		"size", size,
		"mode", string(mode),
		"workers", workers,
		"output", output,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	tasks := make([]worker.Task, 0, len(sphere.Faces))
	for _, f := range sphere.Faces {
		tasks = append(tasks, worker.Task{Face: f, Size: size})
	}

	progress := worker.NewProgress(len(tasks), "faces", showProgress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Renderer:   renderer,
		OnProgress: progress.Callback(),
	})
	results := pool.Run(ctx, tasks)
	progress.Done()

	faces := make(map[sphere.Face]image.Image, len(results))
	var failed []string
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Task.Face.String())
			logger.Error("Face render failed", "face", r.Task.Face.String(), "error", r.Err)
			continue
		}
		logger.Debug("Face rendered", "face", r.Task.Face.String(), "ms", r.Elapsed.Milliseconds())
		faces[r.Task.Face] = r.Image
	}
	logger.Info(progress.Summary())
	if len(failed) > 0 {
		return fmt.Errorf("failed to render faces: %s", strings.Join(failed, ", "))
	}

	if outline {
		keys, err := leafKeysFor(viper.GetString("preview.viewer"))
		if err != nil {
			return err
		}
		overlayOutlines(faces, keys, size)
	}

	atlas := preview.Atlas(faces, size)
	if err := preview.WritePNG(output, atlas); err != nil {
		return err
	}
	logger.Info("Preview written", "path", output)

	if thumbWidth > 0 {
		thumbPath := strings.TrimSuffix(output, ".png") + ".thumb.png"
		if err := preview.WritePNG(thumbPath, preview.Thumbnail(atlas, thumbWidth)); err != nil {
			return err
		}
		logger.Info("Thumbnail written", "path", thumbPath, "width", thumbWidth)
	}
	return nil
}

// leafKeysFor runs LOD passes for a fixed viewer until the tree settles and
// returns the leaf keys.
func leafKeysFor(viewerFlag string) ([]tile.Key, error) {
	pos, err := parseVec3(viewerFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid --viewer: %w", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	p, err := newPlanet(cfg)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	if _, err := settle(p, quadtree.Viewer{Position: pos}, cfg.LOD.MaxDepth+1); err != nil {
		return nil, err
	}

	leaves := p.Leaves()
	keys := make([]tile.Key, 0, len(leaves))
	for _, l := range leaves {
		keys = append(keys, l.Key())
	}
	return keys, nil
}

// overlayOutlines draws leaf borders over each face image.
func overlayOutlines(faces map[sphere.Face]image.Image, keys []tile.Key, size int) {
	outlines := raster.NewRenderer(size, 1, color.NRGBA{A: 200})
	for face, regions := range preview.LeafRegions(keys) {
		img, ok := faces[face].(draw.Image)
		if !ok {
			continue
		}
		preview.Overlay(img, outlines.Outlines(regions))
	}
}
