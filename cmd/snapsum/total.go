package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/snapsum/internal/numeric"
	"github.com/ironsheep/snapsum/internal/ocr"
)

type totalOptions struct {
	ocrJSON bool
	signed  bool
	json    bool
}

func (c *cli) totalCmd() *cobra.Command {
	var opts totalOptions

	cmd := &cobra.Command{
		Use:   "total [file]",
		Short: "Sum the numeric lines of a text file or stdin",
		Long: "total sums every line that is a decimal number, skipping the rest.\n" +
			"With --ocr-json the input is OCR output ([{\"rec_texts\": [...]}]) and\n" +
			"the recognized texts go through the same filter as image recognition.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			if !cmd.Flags().Changed("signed") {
				opts.signed = c.cfg.OCR.SignedNumbers
			}
			return runTotal(in, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ocrJSON, "ocr-json", false, "read OCR prediction JSON instead of plain lines")
	cmd.Flags().BoolVar(&opts.signed, "signed", false, "with --ocr-json, accept signed decimals (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")
	return cmd
}

type totalResult struct {
	Numbers   []numeric.Number `json:"numbers"`
	Total     float64          `json:"total"`
	TotalText string           `json:"total_text"`
}

func runTotal(r io.Reader, w io.Writer, opts totalOptions) error {
	var numbers []numeric.Number

	if opts.ocrJSON {
		preds, err := ocr.DecodePredictions(r)
		if err != nil {
			return err
		}
		texts := ocr.RecTexts(preds)
		if opts.signed {
			numbers = numeric.ExtractNumbers(texts)
		} else {
			numbers = numeric.FilterDigitTokens(texts)
		}
	} else {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		numbers, _ = numeric.SumText(string(data))
	}

	total := numeric.Sum(numeric.Values(numbers))

	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(totalResult{Numbers: numbers, Total: total, TotalText: numeric.FormatTotal(total)})
	}

	for _, n := range numbers {
		fmt.Fprintln(w, n.Text)
	}
	fmt.Fprintf(w, "total: %s\n", numeric.FormatTotal(total))
	return nil
}
