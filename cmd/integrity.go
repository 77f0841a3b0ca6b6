package cmd

import (
	"context"
	"errors"

	"gamedata-sync/feature/integrity"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fixFlag bool

// integrityCmd represents the integrity command
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Perform integrity checks on the cache and its dependencies",
	Long:  `Checks the cached files, the templates, the bucket layout and the history schema.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), true, true, true, true)
	},
}

var cacheCheckCmd = &cobra.Command{
	Use:   "cache",
	Short: "Verify cached files against their format markers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), true, false, false, false)
	},
}

var templateCheckCmd = &cobra.Command{
	Use:   "templates",
	Short: "Verify that every obfuscated table has a usable template",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), false, true, false, false)
	},
}

var structureCheckCmd = &cobra.Command{
	Use:   "structure",
	Short: "Check and fix the bucket layout (s3 backend)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), false, false, true, false)
	},
}

var schemaCheckCmd = &cobra.Command{
	Use:   "schema",
	Short: "Check the history table against its model",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), false, false, false, true)
	},
}

func init() {
	RootCmd.AddCommand(integrityCmd)
	integrityCmd.AddCommand(cacheCheckCmd, templateCheckCmd, structureCheckCmd, schemaCheckCmd)

	integrityCmd.PersistentFlags().BoolVar(&fixFlag, "fix", false, "Remove corrupted cache files and create missing folders")
}

func runIntegrityChecks(ctx context.Context, cache, templates, structure, schema bool) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	logg := a.logger
	defer logg.Sync()

	svc := a.integrityService()

	if cache {
		logg.Info("Checking cache...")
		report, err := svc.CheckCache(ctx, fixFlag)
		if err != nil {
			return err
		}
		switch {
		case report.Healthy():
			logg.Info("Cache is intact.", zap.Int("checked", report.Checked))
		case len(report.Removed) > 0:
			logg.Info("Cache repaired; the next sync fetches the removed files again.",
				zap.Strings("removed", report.Removed),
				zap.Strings("missing", report.Missing),
			)
		default:
			logg.Warn("Cache problems detected",
				zap.Strings("corrupted", report.Corrupted),
				zap.Strings("missing", report.Missing),
			)
			logg.Info("Run with --fix to remove corrupted files.")
		}
	}

	if templates {
		logg.Info("Checking templates...")
		report, err := svc.CheckTemplates(ctx)
		if err != nil {
			return err
		}
		if report.Healthy() {
			logg.Info("Templates are usable.", zap.Int("checked", report.Checked))
		} else {
			logg.Warn("Template problems detected", zap.Strings("missing", report.Missing))
			for table, reason := range report.Invalid {
				logg.Warn("Invalid template", zap.String("table", table), zap.String("reason", reason))
			}
		}
	}

	if structure {
		logg.Info("Checking bucket structure...")
		missing, err := svc.CheckStructure(ctx)
		switch {
		case errors.Is(err, integrity.ErrNotApplicable):
			logg.Info("Cache does not use object storage; skipping.")
		case err != nil:
			return err
		case len(missing) == 0:
			logg.Info("Structure is intact.")
		default:
			logg.Warn("Missing folders detected", zap.Strings("missing", missing))
			if fixFlag {
				if err := svc.FixStructure(ctx, missing); err != nil {
					return err
				}
				logg.Info("Structure fixed successfully.")
			} else {
				logg.Info("Run with --fix to create missing folders.")
			}
		}
	}

	if schema {
		logg.Info("Checking history schema...")
		report, err := svc.CheckSchema()
		switch {
		case errors.Is(err, integrity.ErrNotApplicable):
			logg.Info("No database configured; skipping.")
		case err != nil:
			logg.Error("Schema check failed", zap.Error(err))
		case report.Matched:
			logg.Info("History schema matches the model.")
		default:
			for table, tbl := range report.Tables {
				if len(tbl.MissingColumns) > 0 {
					logg.Warn("Missing Columns", zap.String("table", table), zap.Strings("columns", tbl.MissingColumns))
				}
				if len(tbl.TypeMismatches) > 0 {
					logg.Warn("Type Mismatches", zap.String("table", table), zap.Strings("mismatches", tbl.TypeMismatches))
				}
			}
			for _, e := range report.Errors {
				logg.Error("Inspection Error", zap.String("error", e))
			}
		}
	}
	return nil
}
