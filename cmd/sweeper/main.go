package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reconware/sweeper/internal/config"
	"github.com/reconware/sweeper/internal/log"
)

var (
	userConfigPath string // default config directory for this OS
	configPath     string // config file actually used (if any)
	cfg            *config.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "sweeper")
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is sweeper.toml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse the config, setup logging
	rootCmd.PersistentPreRunE = initSweeper

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("sweeper failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "sweeper",
	Short:        "Scan orchestration engine driving external network scanners",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides the version of sweeper",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("sweeper: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:  %s\n", configPath)
		}
		fmt.Printf("sweeper: %s\n", info.Main.Version)
		fmt.Printf("go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:    %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:   %s\n", s.Value)
			}
		}
	},
}

func initSweeper(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("SWEEPERCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{".", userConfigPath} {
			path := filepath.Join(d, "sweeper.toml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			for _, d := range verr.Details {
				slog.Error("invalid configuration", d.Attr("detail"))
			}
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// --verbose has precedence over the config file
	verbose := cfg.Verbose() || flagVerbose

	w, closeLog, err := log.Open(cfg.LogDst())
	if err != nil {
		return fmt.Errorf("opening log destination: %w", err)
	}
	cobra.OnFinalize(func() {
		_ = closeLog()
	})
	slog.SetDefault(log.New(w, verbose))

	slog.Debug("sweeper starting", "configPath", configPath, "verbose", verbose)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
