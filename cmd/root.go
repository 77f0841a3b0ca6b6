package cmd

import (
	"fmt"
	"os"

	"gamedata-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gamedata-sync",
	Short: "Game data synchronization service",
	Long: `gamedata-sync keeps a local cache of versioned game-data files in step with the
upstream repository and recovers the real field names of obfuscated tables by aligning
them with curated reference templates.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// console encoding with development timestamps for CLI output
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
