package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dunamismax/iconflow/internal/palette"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/cobra"
)

func newPalettesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "palettes",
		Short: "List built-in palette ramps",
		Long: `List the built-in palette ramps, light to dark. Any of these names, a
comma-separated list of hex colors, or "auto" can be passed to --palette.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range palette.Names() {
				colors, err := palette.Parse(name)
				if err != nil {
					return err
				}
				hexes := make([]string, len(colors))
				for i, c := range colors {
					cc, _ := colorful.MakeColor(c)
					hexes[i] = cc.Hex()
				}
				fmt.Fprintf(tw, "%s\t%s\n", name, strings.Join(hexes, " "))
			}
			return tw.Flush()
		},
	}
}
