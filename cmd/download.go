package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/borshchevsky/tax-forms-scraper/internal/forms"
)

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download FORM YEAR_START YEAR_END",
		Short: "Download forms in PDF",
		Long: `Resolves one form identifier and downloads the PDF revision for every
year the catalog lists inside the requested range. Years the catalog does
not list are skipped; a failed year never aborts the others.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormNames(args[:1]); err != nil {
				return err
			}
			startYear, err := parseYear(args[1])
			if err != nil {
				return err
			}
			endYear, err := parseYear(args[2])
			if err != nil {
				return err
			}
			if startYear > endYear {
				return fmt.Errorf("start year %d is after end year %d", startYear, endYear)
			}

			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			res := e.pipe.ResolveDownloads(cmd.Context(), args[0], startYear, endYear, dirLayout{dir: e.cfg.Download.Dir})
			logFailures(e.logger, []forms.Resolution{res})

			switch res.Kind {
			case forms.KindSuccess:
				downloaded := 0
				for _, d := range res.Downloads {
					if d.Err == nil {
						downloaded++
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d forms were downloaded.\n", downloaded)
				if failed := len(res.Downloads) - downloaded; failed > 0 {
					return fmt.Errorf("%d of %d downloads failed", failed, len(res.Downloads))
				}
				return nil
			case forms.KindNotFound:
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing found.")
				return nil
			case forms.KindNotFoundForRange:
				fmt.Fprintf(cmd.OutOrStdout(), "No revisions of %s between %d and %d.\n", args[0], startYear, endYear)
				return nil
			default:
				return res.Err
			}
		},
	}

	return cmd
}

func parseYear(raw string) (int, error) {
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("years values must be integers: %s", raw)
	}
	if year < 1800 {
		return 0, fmt.Errorf("years values must be more than 1800: %d", year)
	}
	return year, nil
}

// dirLayout is the CLI's destination-path resolver: every revision lands in
// one flat directory as "<Form number> - <year>.pdf".
type dirLayout struct {
	dir string
}

func (d dirLayout) DestinationPath(formNumber string, year int) (string, error) {
	if err := os.MkdirAll(d.dir, 0o750); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	// Form numbers come from scraped markup; keep them out of path
	// semantics.
	safe := strings.ReplaceAll(formNumber, string(os.PathSeparator), "-")
	return filepath.Join(d.dir, fmt.Sprintf("%s - %d.pdf", safe, year)), nil
}
