package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docrefine/constants"
	"github.com/joseph-ayodele/docrefine/internal/core"
	"github.com/joseph-ayodele/docrefine/internal/extract"
	"github.com/joseph-ayodele/docrefine/internal/llm/openai"
	"github.com/joseph-ayodele/docrefine/internal/repository"
)

var rewriteStyle string

func completeStyles(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	styles := constants.AllStyles()
	out := make([]string, 0, len(styles))
	for _, s := range styles {
		out = append(out, string(s))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <file>",
	Short: "Extract a document and rewrite it synchronously, printing the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := slog.Default()
		path := args[0]

		fi, err := os.Stat(path)
		if err != nil {
			return err
		}

		store := repository.NewMemoryRepository(0, logger)
		defer store.Close()

		rewriter := openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		proc := core.NewProcessor(logger, extract.NewExtractor(extract.Config{}, logger), rewriter, store, cfg.Worker.ProcessTimeout)

		doc, err := proc.Run(cmd.Context(), core.Upload{
			Path:         path,
			OriginalName: filepath.Base(path),
			Size:         fi.Size(),
			Style:        rewriteStyle,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}
		if doc.Status != constants.StatusCompleted {
			return fmt.Errorf("rewrite of %s ended with status %s", doc.OriginalName, doc.Status)
		}
		return nil
	},
}

func init() {
	rewriteCmd.Flags().StringVarP(&rewriteStyle, "style", "s", string(constants.Professional),
		"Writing style: "+strings.Join(constants.StylesAsStringSlice(), ", "))
	_ = rewriteCmd.RegisterFlagCompletionFunc("style", completeStyles)
	rootCmd.AddCommand(rewriteCmd)
}
