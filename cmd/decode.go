package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gamedata-sync/core/schema"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <table> <file>",
	Short: "Decode an obfuscated table file against its template",
	Long: `Aligns the records of a local table file with the table's curated template and prints
the records with canonical keys. The decoding result is logged.`,
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
		if err := a.openStores(ctx); err != nil {
			return err
		}

		doc, err := readJSONFile(file)
		if err != nil {
			return err
		}
		tmpl, err := a.registry.Get(ctx, table)
		if err != nil {
			return err
		}

		opts := a.cfg.Sync.Decode
		if s, _ := cmd.Flags().GetString("strategy"); s != "" {
			opts.Strategy = schema.Strategy(s)
		}
		if partial, _ := cmd.Flags().GetBool("partial"); partial {
			opts.AllowPartial = true
		}

		out, res, err := schema.NewDecoder(logg).DecodeDocument(tmpl, doc, opts)
		if res != nil {
			logg.Info("Decoded table",
				zap.String("table", table),
				zap.Bool("success", res.Success),
				zap.Float64("confidence", res.Confidence),
				zap.Any("key_mappings", res.KeyMappings),
				zap.Strings("unmatched", res.PartialMatches),
			)
		}
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if path, _ := cmd.Flags().GetString("out"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			defer f.Close()
			w = f
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	RootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().String("strategy", "", "Matching strategy: exact, subset or fuzzy (defaults to sync.decode.strategy)")
	decodeCmd.Flags().Bool("partial", false, "Accept results below the confidence threshold")
	decodeCmd.Flags().StringP("out", "o", "", "Write the decoded table to a file instead of stdout")
}

// readJSONFile decodes a JSON file keeping numbers in their literal form.
func readJSONFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}
