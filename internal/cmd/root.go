package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cubeplanet/internal/config"
)

var (
	cfgFile string
	// cfgErr holds a config file error from initConfig; commands report it
	// through loadConfig.
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "cubeplanet",
	Short: "A procedural cube-sphere planet generator",
	Long: `CubePlanet builds procedural planets from six quadtree-subdivided cube faces.

It displaces every patch with layered noise, colours it by height and slope,
refines the quadtree around a viewer and keeps neighbouring patches seam-free.
Meshes can be exported to a patch store, previewed as images, or streamed
live over HTTP and websockets.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./cubeplanet.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().Int64("seed", 0, "Override noise.seed")
	rootCmd.PersistentFlags().Float64("radius", 0, "Override planet.radius")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("noise.seed", rootCmd.PersistentFlags().Lookup("seed")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("planet.radius", rootCmd.PersistentFlags().Lookup("radius")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func initConfig() {
	if err := config.ReadDefaults(viper.GetViper()); err != nil {
		cfgErr = err
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("cubeplanet")
	}

	viper.SetEnvPrefix("CUBEPLANET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.MergeInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	case errors.As(err, &notFound) && cfgFile == "":
	default:
		cfgErr = fmt.Errorf("failed to read config file: %w", err)
	}
}
