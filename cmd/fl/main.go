package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/farmlink/farmlink/internal/config"
	"github.com/farmlink/farmlink/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// globals holds state shared by every subcommand.
type globals struct {
	configPath string
	verbose    bool
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:          "fl",
		Short:        "FarmLink: marketplace negotiations",
		Long:         "FarmLink serves and drives offer/demand negotiations between farmers and buyers.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			log, err := logging.New(g.verbose)
			if err != nil {
				return err
			}
			g.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.log != nil {
				_ = g.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "farmlink.yaml", "path to FarmLink config file")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newDBCmd(g))
	cmd.AddCommand(newNegotiationCmd(g))
	return cmd
}

// loadConfig reads the config file. A missing file at the default path
// falls back to built-in defaults; an explicit --config must exist.
func (g *globals) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Parse(nil)
	}
	return nil, fmt.Errorf("load config: %w", err)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fl %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
