package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docrefine/constants"
	"github.com/joseph-ayodele/docrefine/internal/extract"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Print the text extracted from a document and its word count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		mediaType := constants.ResolveMediaType("", filepath.Ext(path))

		res, err := extract.NewExtractor(extract.Config{}, nil).Extract(cmd.Context(), path, mediaType)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"file":       filepath.Base(path),
			"mediaType":  mediaType,
			"method":     res.Method,
			"pages":      res.Pages,
			"wordCount":  res.WordCount,
			"durationMs": res.Duration.Milliseconds(),
			"text":       res.Text,
		})
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
