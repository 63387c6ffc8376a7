package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/borshchevsky/tax-forms-scraper/internal/forms"
)

const summaryFile = "forms.json"

func newSearchCmd() *cobra.Command {
	var toFile bool

	cmd := &cobra.Command{
		Use:   "search FORM...",
		Short: "Find year ranges for forms",
		Long: `Resolves each form identifier against the catalog and prints a JSON
array with the form's title and the first and last year it was published.
Identifiers that match nothing are reported as not found.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormNames(args); err != nil {
				return err
			}

			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			results := e.pipe.ResolveSummaries(cmd.Context(), args)
			logFailures(e.logger, results)

			doc, err := renderSummaryDoc(results)
			if err != nil {
				return err
			}

			if toFile {
				if err := os.WriteFile(summaryFile, doc, 0o600); err != nil {
					return fmt.Errorf("write %s: %w", summaryFile, err)
				}
				e.logger.Info("summary saved", zap.String("file", summaryFile))
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(doc))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&toFile, "file", "f", false, "save JSON to "+summaryFile)

	return cmd
}

func validateFormNames(names []string) error {
	for _, name := range names {
		if utf8.RuneCountInString(strings.TrimSpace(name)) < 4 {
			return fmt.Errorf("form name is too short: %s", name)
		}
	}
	return nil
}

// renderSummaryDoc builds the JSON summary array. Resolved identifiers
// contribute a summary object; everything else contributes a
// {"<Form name>": "not found"} marker so every input appears in the output.
func renderSummaryDoc(results []forms.Resolution) ([]byte, error) {
	out := make([]any, 0, len(results))
	for _, r := range results {
		if r.Kind == forms.KindSuccess && r.Summary != nil {
			out = append(out, r.Summary)
			continue
		}
		out = append(out, map[string]string{capitalize(r.Identifier): "not found"})
	}

	doc, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	return doc, nil
}

func logFailures(logger *zap.Logger, results []forms.Resolution) {
	for _, r := range results {
		switch r.Kind {
		case forms.KindParseError:
			logger.Error("catalog format changed", zap.String("identifier", r.Identifier), zap.Error(r.Err))
		case forms.KindFetchError:
			logger.Error("catalog unreachable", zap.String("identifier", r.Identifier), zap.Error(r.Err))
		}
	}
}

// capitalize mirrors the summary document's identifier casing: first rune
// upper, the rest lower.
func capitalize(s string) string {
	s = forms.Normalize(s)
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
