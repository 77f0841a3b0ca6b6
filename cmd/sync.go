package cmd

import (
	"encoding/json"
	"fmt"

	"gamedata-sync/core/synchronizer"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the cache with the upstream revision",
	Long: `Checks the upstream revision and downloads, filters and decodes every table, text map
and asset the selected consumers need. Without --consumer all consumers are synced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		logg := a.logger
		defer logg.Sync()

		if check, _ := cmd.Flags().GetBool("check"); check {
			changed, err := a.syncer.CheckForUpdate(ctx)
			if err != nil {
				return err
			}
			logg.Info("Checked upstream revision",
				zap.Bool("changed", changed),
				zap.String("upstream", a.syncer.Status().Upstream),
			)
			return nil
		}

		consumers, _ := cmd.Flags().GetStringSlice("consumer")
		languages, _ := cmd.Flags().GetStringSlice("lang")
		if len(consumers) == 0 {
			consumers = a.cfg.Sync.Consumers
		}
		if len(languages) == 0 {
			languages = a.cfg.Sync.Languages
		}

		tables, err := a.syncer.RequiredTables(consumers)
		if err != nil {
			return err
		}
		assets, err := a.manifest.RequiredAssets(consumers)
		if err != nil {
			return err
		}

		if _, err := a.syncer.CheckForUpdate(ctx); err != nil {
			logg.Warn("Revision query failed", zap.Error(err))
		}
		logg.Info("Syncing",
			zap.Int("tables", len(tables)),
			zap.Int("assets", len(assets)),
			zap.Strings("languages", languages),
		)
		if err := a.syncer.Execute(ctx, synchronizer.Request{
			Tables:    tables,
			Assets:    assets,
			Languages: languages,
			Trigger:   synchronizer.TriggerManual,
		}); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		data, err := json.MarshalIndent(a.syncer.Status(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringSlice("consumer", nil, "Only sync what these consumers need")
	syncCmd.Flags().StringSlice("lang", nil, "Text-map languages (defaults to sync.languages)")
	syncCmd.Flags().Bool("check", false, "Only check whether the upstream revision changed")
}
