package cmd

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cubeplanet/internal/geojson"
	"github.com/MeKo-Tech/cubeplanet/internal/planet"
	"github.com/MeKo-Tech/cubeplanet/internal/quadtree"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Export the quadtree leaves for a viewer as GeoJSON",
	RunE:  runTree,
}

func init() {
	rootCmd.AddCommand(treeCmd)

	treeCmd.Flags().String("viewer", "0,0,12", "Viewer position: x,y,z")
	treeCmd.Flags().String("forward", "", "Viewer forward vector: x,y,z (default: none)")
	treeCmd.Flags().Int("passes", 0, "Maximum LOD passes (default: until the tree settles)")
	treeCmd.Flags().Int("segments", geojson.DefaultSegments, "Outline samples per patch side")
	treeCmd.Flags().StringP("output", "o", "", "Output GeoJSON file (default: stdout)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"tree.viewer", "viewer"},
		{"tree.forward", "forward"},
		{"tree.passes", "passes"},
		{"tree.segments", "segments"},
		{"tree.output", "output"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, treeCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runTree(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pos, err := parseVec3(viper.GetString("tree.viewer"))
	if err != nil {
		return fmt.Errorf("invalid --viewer: %w", err)
	}
	var forward mgl64.Vec3
	if s := viper.GetString("tree.forward"); s != "" {
		if forward, err = parseVec3(s); err != nil {
			return fmt.Errorf("invalid --forward: %w", err)
		}
	}
	passes := viper.GetInt("tree.passes")
	if passes <= 0 {
		passes = cfg.LOD.MaxDepth + 1
	}

	p, err := newPlanet(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	report, err := settle(p, quadtree.Viewer{Position: pos, Forward: forward}, passes)
	if err != nil {
		return err
	}

	features := geojson.FromPatches(p.Leaves())
	data, err := geojson.ToGeoJSONBytes(features, viper.GetInt("tree.segments"))
	if err != nil {
		return err
	}

	logger.Info("Quadtree exported",
		"leaves", len(features),
		"built", len(report.Built),
		"failed", len(report.Failed),
		"summary", geojson.Summary(features),
	)

	output := viper.GetString("tree.output")
	if output == "" {
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	logger.Info("GeoJSON written", "path", output)
	return nil
}

// settle ticks p for a fixed viewer until a pass changes nothing or
// maxPasses is reached, and returns the combined report.
func settle(p *planet.Planet, v quadtree.Viewer, maxPasses int) (*quadtree.Report, error) {
	var total quadtree.Report
	for i := 0; i < maxPasses; i++ {
		report, err := p.Tick(v)
		if err != nil {
			return nil, fmt.Errorf("LOD pass %d failed: %w", i, err)
		}
		total.Add(report)
		if !report.Changed() {
			break
		}
	}
	return &total, nil
}
