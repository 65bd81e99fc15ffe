package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/snapsum/internal/apperr"
	"github.com/ironsheep/snapsum/internal/capture"
	"github.com/ironsheep/snapsum/internal/config"
	"github.com/ironsheep/snapsum/internal/imaging"
	"github.com/ironsheep/snapsum/internal/numeric"
	"github.com/ironsheep/snapsum/internal/recognition"
	"github.com/ironsheep/snapsum/internal/selection"
)

type sumOptions struct {
	region string
	scale  float64
	screen bool
	json   bool
}

func (c *cli) sumCmd() *cobra.Command {
	var opts sumOptions

	cmd := &cobra.Command{
		Use:   "sum [image]",
		Short: "Recognize the numbers in an image or screen region and print their sum",
		Example: "  snapsum sum receipt.png\n" +
			"  snapsum sum receipt.png --region 120,40,380,300 --scale 2\n" +
			"  snapsum sum --screen --region 0,0,800,600 --json",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSum(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.region, "region", "", "only recognize this rectangle, as x1,y1,x2,y2")
	cmd.Flags().Float64Var(&opts.scale, "scale", 1.0, "scale of the view --region was measured on")
	cmd.Flags().BoolVar(&opts.screen, "screen", false, "capture the screen instead of reading an image file")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")
	return cmd
}

func (c *cli) runSum(cmd *cobra.Command, args []string, opts sumOptions) error {
	req, err := prepareRequest(c.cfg, args, opts, capture.Screen, capture.Region)
	if err != nil {
		return err
	}

	worker := c.newWorker()
	defer closeWorker(worker)

	res, err := worker.Recognize(cmd.Context(), req)
	if err != nil {
		if req.Temporary {
			os.Remove(req.ImagePath)
		}
		return err
	}
	return printResult(cmd.OutOrStdout(), res, opts.json)
}

// prepareRequest turns the command line into a recognition request. Crops
// and screenshots are written to temp files the worker deletes; a plain
// image path is recognized in place unless preprocessing is configured.
func prepareRequest(cfg *config.Config, args []string, opts sumOptions,
	screen func() (image.Image, error), region func(selection.Rect) (image.Image, error)) (recognition.Request, error) {

	var rect *selection.Rect
	if opts.region != "" {
		r, err := selection.ParseRect(opts.region)
		if err != nil {
			return recognition.Request{}, apperr.InputCause(err, "invalid --region")
		}
		rect = &r
	}

	if opts.screen {
		if len(args) > 0 {
			return recognition.Request{}, apperr.Input("--screen does not take an image argument")
		}
		var (
			img image.Image
			err error
		)
		if rect != nil {
			// --scale maps a region measured on a scaled screenshot back to
			// screen pixels.
			mapped, merr := selection.MapToSource(*rect, opts.scale)
			if merr != nil {
				return recognition.Request{}, apperr.InputCause(merr, "invalid --scale")
			}
			img, err = region(mapped)
		} else {
			img, err = screen()
		}
		if err != nil {
			return recognition.Request{}, fmt.Errorf("screen capture failed: %w", err)
		}
		return tempRequest(cfg, imaging.Preprocess(img, cfg.Preprocess), "captured-screen-region")
	}

	if len(args) == 0 {
		return recognition.Request{}, apperr.Input("no image selected")
	}
	path := args[0]

	if rect == nil && !cfg.Preprocess.Enabled() {
		return recognition.Request{ImagePath: path}, nil
	}

	src, err := imaging.NewImageCache().Load(path)
	if err != nil {
		return recognition.Request{}, apperr.InputCause(err, "failed to load image")
	}
	if rect == nil {
		return tempRequest(cfg, imaging.Preprocess(src, cfg.Preprocess), "preprocessed")
	}

	out, _, err := imaging.ExtractRegion(src, *rect, opts.scale, cfg.Preprocess)
	if err != nil {
		return recognition.Request{}, apperr.InputCause(err, "invalid --region")
	}
	return tempRequest(cfg, out, "selected-region")
}

func tempRequest(cfg *config.Config, img image.Image, prefix string) (recognition.Request, error) {
	path, err := imaging.SaveTempPNG(img, cfg.TempDir, prefix)
	if err != nil {
		return recognition.Request{}, err
	}
	return recognition.Request{ImagePath: path, Temporary: true}, nil
}

// printResult writes one number per line followed by "total: <sum>", or the
// result as JSON. A failed result is printed and also returned as an error.
func printResult(w io.Writer, res recognition.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else if res.Success {
		for _, n := range res.Numbers {
			fmt.Fprintln(w, n)
		}
		fmt.Fprintf(w, "total: %s\n", numeric.FormatTotal(res.Total))
	}

	if !res.Success {
		if res.Err == nil {
			return errors.New("recognition failed")
		}
		return res.Err
	}
	return nil
}
