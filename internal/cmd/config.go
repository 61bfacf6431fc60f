package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/cubeplanet/assets"
	"github.com/MeKo-Tech/cubeplanet/internal/config"
	"github.com/MeKo-Tech/cubeplanet/internal/planet"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or initialise the planet configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().StringP("output", "o", "cubeplanet.yaml", "Output file")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

// loadConfig decodes the merged viper state into a validated Config and
// logs every value that had to be clamped.
func loadConfig() (*config.Config, error) {
	if logger == nil {
		initLogging()
	}
	if cfgErr != nil {
		return nil, cfgErr
	}

	cfg, corrections, err := config.Load(viper.GetViper())
	for _, c := range corrections {
		logger.Warn("Config value corrected", "correction", c)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newPlanet builds a planet from cfg and runs the initial regeneration.
func newPlanet(cfg *config.Config) (*planet.Planet, error) {
	p, err := planet.New(cfg, planet.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create planet: %w", err)
	}
	report, err := p.Regenerate()
	if err != nil {
		return nil, fmt.Errorf("failed to regenerate planet: %w", err)
	}
	for _, f := range report.Failed {
		logger.Error("Root patch build failed", "key", f.Key.String(), "error", f.Err)
	}
	return p, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	output, _ := cmd.Flags().GetString("output")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(output); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", output)
	}
	if err := os.WriteFile(output, assets.DefaultConfig, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.Info("Default configuration written", "path", output)
	return nil
}
