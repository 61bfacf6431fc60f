package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/cubeplanet/internal/planet"
	"github.com/MeKo-Tech/cubeplanet/internal/quadtree"
	"github.com/MeKo-Tech/cubeplanet/internal/store"
	"github.com/MeKo-Tech/cubeplanet/internal/worker"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate planet meshes along a viewer path",
	Long: `Regenerate the planet, then move a viewer in a straight line from --from to --to
over --ticks LOD passes. Each pass is logged; the visible leaf meshes of the final
tree can be written to a patch store with --output.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("from", "0,0,60", "Viewer start position: x,y,z")
	generateCmd.Flags().String("to", "0,0,10.5", "Viewer end position: x,y,z")
	generateCmd.Flags().String("forward", "", "Viewer forward vector: x,y,z (default: none)")
	generateCmd.Flags().Int("ticks", 10, "Number of LOD passes along the path")
	generateCmd.Flags().Bool("progress", true, "Show progress bar")
	generateCmd.Flags().Bool("allow-failures", false, "Succeed even if some patches failed to build")

	generateCmd.Flags().StringP("output", "o", "", "Patch store file (e.g., planet.db)")
	generateCmd.Flags().String("name", "CubePlanet", "Planet name stored in the patch store")
	generateCmd.Flags().String("description", "Procedural cube-sphere planet", "Description stored in the patch store")
	generateCmd.Flags().Bool("all-patches", false, "Store every built patch, not just visible leaves")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"generate.from", "from"},
		{"generate.to", "to"},
		{"generate.forward", "forward"},
		{"generate.ticks", "ticks"},
		{"generate.progress", "progress"},
		{"generate.allow_failures", "allow-failures"},
		{"generate.output", "output"},
		{"generate.name", "name"},
		{"generate.description", "description"},
		{"generate.all_patches", "all-patches"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, generateCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ticks := viper.GetInt("generate.ticks")
	showProgress := viper.GetBool("generate.progress")
	allowFailures := viper.GetBool("generate.allow_failures")
	output := viper.GetString("generate.output")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	from, err := parseVec3(viper.GetString("generate.from"))
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := parseVec3(viper.GetString("generate.to"))
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}
	var forward mgl64.Vec3
	if s := viper.GetString("generate.forward"); s != "" {
		if forward, err = parseVec3(s); err != nil {
			return fmt.Errorf("invalid --forward: %w", err)
		}
	}
	if ticks < 1 {
		return fmt.Errorf("--ticks must be at least 1, got %d", ticks)
	}

	logger.Info("Starting planet generation",
		"from", fmt.Sprint(from),
		"to", fmt.Sprint(to),
		"ticks", ticks,
		"max_depth", cfg.LOD.MaxDepth,
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

	p, err := newPlanet(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	progress := worker.NewProgress(ticks, "ticks", showProgress)
	var total quadtree.Report
	for i, pos := range viewerPath(from, to, ticks) {
		if ctx.Err() != nil {
			progress.Done()
			return ctx.Err()
		}

		report, err := p.Tick(quadtree.Viewer{Position: pos, Forward: forward})
		if err != nil {
			return fmt.Errorf("tick %d failed: %w", i, err)
		}
		total.Add(report)

		logger.Debug("Tick",
			"tick", i,
			"viewer", fmt.Sprint(pos),
			"built", len(report.Built),
			"released", len(report.Released),
			"failed", len(report.Failed),
			"subdivided", report.Subdivided,
			"merged", report.Merged,
		)
		for _, f := range report.Failed {
			logger.Error("Patch build failed", "key", f.Key.String(), "error", f.Err)
		}
		progress.Tick(report)
	}
	progress.Done()

	stats := p.Stats()
	logger.Info("Generation complete",
		"patches", stats.Patches,
		"leaves", stats.Leaves,
		"visible", stats.Visible,
		"triangles", stats.Triangles,
		"max_depth", stats.MaxDepth,
		"failed", stats.Failed,
	)
	logger.Info(progress.Summary())

	if output != "" {
		if err := exportStore(p, output, viper.GetBool("generate.all_patches")); err != nil {
			return err
		}
	}

	if len(total.Failed) > 0 {
		if allowFailures {
			logger.Warn("Some patches failed to build, but continuing due to --allow-failures flag", "failed_count", len(total.Failed))
		} else {
			return fmt.Errorf("%d patches failed to build", len(total.Failed))
		}
	}
	return nil
}

// exportStore writes the planet's meshes to a patch store.
func exportStore(p *planet.Planet, path string, all bool) error {
	cfg := p.Config()
	cfgYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	stats := p.Stats()
	writer, err := store.New(path, store.Metadata{
		Name:        viper.GetString("generate.name"),
		Description: viper.GetString("generate.description"),
		Version:     store.FormatVersion,
		Seed:        cfg.Noise.Seed,
		Radius:      cfg.Planet.Radius,
		MaxDepth:    stats.MaxDepth,
		Config:      string(cfgYAML),
	})
	if err != nil {
		return fmt.Errorf("failed to create patch store: %w", err)
	}
	defer writer.Close()

	var written int
	var writeErr error
	p.Walk(func(q *quadtree.Patch) bool {
		if writeErr != nil {
			return false
		}
		if q.Mesh() == nil || (!all && !q.Visible()) {
			return true
		}
		if err := writer.WritePatch(q.Key(), q.Mesh()); err != nil {
			writeErr = fmt.Errorf("failed to write patch %s: %w", q.Key(), err)
			return false
		}
		written++
		return true
	})
	if writeErr != nil {
		return writeErr
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush patch store: %w", err)
	}
	logger.Info("Patch store written", "path", path, "patches", written)
	return nil
}

// parseVec3 parses "x,y,z" into a vector.
func parseVec3(s string) (mgl64.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("expected 3 comma-separated values, got %d", len(parts))
	}

	var v mgl64.Vec3
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return mgl64.Vec3{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		v[i] = val
	}
	return v, nil
}

// viewerPath returns n evenly spaced positions from a to b inclusive.
func viewerPath(a, b mgl64.Vec3, n int) []mgl64.Vec3 {
	if n <= 1 {
		return []mgl64.Vec3{b}
	}
	out := make([]mgl64.Vec3, n)
	for i := range out {
		t := float64(i) / float64(n-1)
		out[i] = a.Add(b.Sub(a).Mul(t))
	}
	return out
}
