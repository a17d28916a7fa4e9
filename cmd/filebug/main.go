package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/filebug/filebug/internal/config"
	"github.com/filebug/filebug/internal/logging"
)

var version = "0.1.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "filebug",
		Short: "File one bug report everywhere",
		Long:  `Filebug submits a feedback/bug report to one or more issue trackers (GitHub, GitLab, Bitbucket, Codeberg, Bugzilla, email), deduplicating against prior submissions.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file path")

	rootCmd.AddCommand(
		newSubmitCmd(&configPath),
		newBatchCmd(&configPath),
		newCheckCmd(),
		newCredsCmd(&configPath),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and initializes logging from it.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := logging.Init(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show filebug version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("filebug v%s\n", version)
		},
	}
}
