package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"photopipe/internal/enhance"
	"photopipe/internal/infra"
	"photopipe/internal/pipeline"
)

func newRootCmd() *cobra.Command {
	var (
		output       string
		algorithm    string
		maxDimension int
	)
	cmd := &cobra.Command{
		Use:   "enhance <input>",
		Short: "Enhance a JPEG or PNG image",
		Long: strings.TrimSpace(`
Applies CLAHE on the lightness channel followed by a gamma curve
(contrast_gamma) or the Drago logarithmic tone mapper (tonemap_drago)
and writes the result as JPEG.
`),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := infra.NewLogger(os.Getenv("APP_ENV"))

			alg, err := enhance.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}
			enhancer, err := enhance.New(enhance.Config{Algorithm: alg, MaxDimension: maxDimension})
			if err != nil {
				return err
			}

			input := args[0]
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			out, err := enhancer.Enhance(data)
			if err != nil {
				return err
			}

			dest := output
			if dest == "" {
				dest = filepath.Join(filepath.Dir(input), pipeline.EnhancedFileName(filepath.Base(input)))
			}
			if err := os.WriteFile(dest, out, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			logger.Info().
				Str("input", input).
				Str("output", dest).
				Str("algorithm", string(alg)).
				Int("bytes", len(out)).
				Msg("image enhanced")
			fmt.Fprintln(cmd.OutOrStdout(), dest)
			return nil
		},
	}

	defaultAlg := os.Getenv("ENHANCE_ALGORITHM")
	if defaultAlg == "" {
		defaultAlg = string(enhance.ContrastGamma)
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default <input>_enhanced.jpg)")
	cmd.Flags().StringVar(&algorithm, "algorithm", defaultAlg, "contrast_gamma or tonemap_drago")
	cmd.Flags().IntVar(&maxDimension, "max-dimension", enhance.DefaultMaxDimension, "Largest accepted width or height")
	return cmd
}
