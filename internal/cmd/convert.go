package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
	"github.com/MeKo-Tech/cubeplanet/internal/store"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a patch store to Wavefront OBJ",
	Long:  `Convert the meshes of a patch store into a single Wavefront OBJ file, one object per patch, with vertex colours and normals.`,
	RunE:  runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringP("input", "i", "planet.db", "Input patch store")
	convertCmd.Flags().StringP("output", "o", "", "Output OBJ file path (required)")
	convertCmd.Flags().Int("depth", -1, "Only convert patches at this depth (-1: all)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"convert.input", "input"},
		{"convert.output", "output"},
		{"convert.depth", "depth"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, convertCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputFile := viper.GetString("convert.input")
	outputFile := viper.GetString("convert.output")
	depth := viper.GetInt("convert.depth")

	if logger == nil {
		initLogging()
	}

	if outputFile == "" {
		return fmt.Errorf("--output is required")
	}
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input store does not exist: %s", inputFile)
	}

	reader, err := store.OpenReader(inputFile)
	if err != nil {
		return err
	}
	defer reader.Close()

	meta, err := reader.Metadata()
	if err != nil {
		return err
	}
	keys, err := reader.Keys()
	if err != nil {
		return err
	}
	keys = filterDepth(keys, depth)
	if len(keys) == 0 {
		return fmt.Errorf("no patches found in %s", inputFile)
	}

	logger.Info("Converting patch store to OBJ",
		"input", inputFile,
		"output", outputFile,
		"name", meta.Name,
		"patches", len(keys),
	)

	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outputFile, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	obj := newOBJWriter(w, meta.Name)
	for i, key := range keys {
		m, err := reader.ReadPatch(key)
		if err != nil {
			logger.Error("Failed to read patch", "key", key.String(), "error", err)
			continue
		}
		if err := obj.WritePatch(key, m); err != nil {
			return fmt.Errorf("failed to write patch %s: %w", key, err)
		}

		if (i+1)%100 == 0 {
			logger.Info("Progress", "converted", i+1, "total", len(keys))
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", outputFile, err)
	}

	logger.Info("Conversion complete", "output", outputFile, "patches", obj.patches, "vertices", obj.offset)
	return nil
}

func filterDepth(keys []tile.Key, depth int) []tile.Key {
	if depth < 0 {
		return keys
	}
	out := keys[:0]
	for _, k := range keys {
		if int(k.Z) == depth {
			out = append(out, k)
		}
	}
	return out
}

// objWriter appends patches to one OBJ stream. OBJ indices are global and
// 1-based, so each patch is offset by the vertices written before it.
type objWriter struct {
	w       io.Writer
	offset  int
	patches int
	started bool
	name    string
}

func newOBJWriter(w io.Writer, name string) *objWriter {
	return &objWriter{w: w, name: name}
}

// WritePatch writes m as the object named after key. Vertex colours use
// the common "v x y z r g b" extension.
func (o *objWriter) WritePatch(key tile.Key, m *mesh.Mesh) error {
	if !o.started {
		if _, err := fmt.Fprintf(o.w, "# %s\n", o.name); err != nil {
			return err
		}
		o.started = true
	}
	if _, err := fmt.Fprintf(o.w, "o %s\n", key); err != nil {
		return err
	}

	hasColors := len(m.Colors) == len(m.Vertices)
	for i, v := range m.Vertices {
		var err error
		if hasColors {
			c := m.Colors[i]
			_, err = fmt.Fprintf(o.w, "v %g %g %g %g %g %g\n", v.X(), v.Y(), v.Z(), c.R, c.G, c.B)
		} else {
			_, err = fmt.Fprintf(o.w, "v %g %g %g\n", v.X(), v.Y(), v.Z())
		}
		if err != nil {
			return err
		}
	}

	hasNormals := len(m.Normals) == len(m.Vertices)
	for _, n := range m.Normals {
		if !hasNormals {
			break
		}
		if _, err := fmt.Fprintf(o.w, "vn %g %g %g\n", n.X(), n.Y(), n.Z()); err != nil {
			return err
		}
	}

	for t := 0; t+2 < len(m.Triangles); t += 3 {
		a := int(m.Triangles[t]) + o.offset + 1
		b := int(m.Triangles[t+1]) + o.offset + 1
		c := int(m.Triangles[t+2]) + o.offset + 1
		var err error
		if hasNormals {
			_, err = fmt.Fprintf(o.w, "f %d//%d %d//%d %d//%d\n", a, a, b, b, c, c)
		} else {
			_, err = fmt.Fprintf(o.w, "f %d %d %d\n", a, b, c)
		}
		if err != nil {
			return err
		}
	}

	o.offset += len(m.Vertices)
	o.patches++
	return nil
}
