package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/emotibot/core"
	"github.com/hupe1980/emotibot/face"
)

func newRenderCmd() *cobra.Command {
	var (
		m      = core.NeutralMood()
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a face for a mood and print it as SVG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			img := face.Render(m)
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(img)
			}

			_, err := fmt.Fprintln(out, img.SVG())
			return err
		},
	}

	cmd.Flags().Float64Var(&m.Happiness, "happiness", core.MoodNeutral, "happiness 0-100")
	cmd.Flags().Float64Var(&m.Energy, "energy", core.MoodNeutral, "energy 0-100")
	cmd.Flags().Float64Var(&m.Calmness, "calmness", core.MoodNeutral, "calmness 0-100")
	cmd.Flags().Float64Var(&m.Confidence, "confidence", core.MoodNeutral, "confidence 0-100")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the structured image instead of SVG")

	return cmd
}
