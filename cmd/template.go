package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gamedata-sync/core/schema"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// templateCmd groups the template commands
var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage reference templates",
}

var templateGenerateCmd = &cobra.Command{
	Use:   "generate <table> <file>",
	Short: "Draft a template from a table file",
	Long: `Drafts a template from the records of a local table file. The draft keeps the file's
keys, so a draft made from an obfuscated table must have its keys renamed to canonical
names by hand before it can decode anything.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		table, file := args[0], args[1]

		a, err := bootstrap()
		if err != nil {
			return err
		}
		logg := a.logger
		defer logg.Sync()

		doc, err := readJSONFile(file)
		if err != nil {
			return err
		}
		records, ok := doc.([]any)
		if !ok {
			return fmt.Errorf("%s is not a list of records", file)
		}

		alternates, _ := cmd.Flags().GetInt("alternates")
		tmpl, err := schema.GenerateTemplate(table, records, alternates, time.Now())
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := tmpl.Encode(&buf); err != nil {
			return err
		}

		if write, _ := cmd.Flags().GetBool("write"); !write {
			_, err := os.Stdout.Write(buf.Bytes())
			return err
		}

		if err := a.openStores(ctx); err != nil {
			return err
		}
		if err := a.templates.Write(ctx, schema.TemplateKey(table), &buf); err != nil {
			return fmt.Errorf("failed to store template: %w", err)
		}
		logg.Info("Template draft stored",
			zap.String("table", table),
			zap.String("key", schema.TemplateKey(table)),
			zap.Int("alternates", len(tmpl.AlternativePatterns)),
		)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(templateCmd)
	templateCmd.AddCommand(templateGenerateCmd)
	templateGenerateCmd.Flags().Int("alternates", 3, "Maximum number of alternative patterns")
	templateGenerateCmd.Flags().Bool("write", false, "Store the draft in the template store instead of printing it")
}
