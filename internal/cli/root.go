// Package cli implements the iconify command, a local front end to the same
// synthesis core the worker runs.
package cli

import (
	"github.com/dunamismax/iconflow/internal/config"
	"github.com/dunamismax/iconflow/internal/logging"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	verbose bool
	cfg     config.Config
}

// NewRootCmd builds a fresh command tree. Defaults for unset icon settings
// come from the same environment the worker reads.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{cfg: config.Load()}

	root := &cobra.Command{
		Use:   "iconify",
		Short: "Turn images into small flat-shaded icons",
		Long: `iconify reduces an image to a small icon by measuring how densely
edges cluster across it and shading each region by that density.

Unset settings fall back to the ICON_DEFAULT_* environment variables.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging on stderr")

	root.AddCommand(newRenderCmd(g))
	root.AddCommand(newPalettesCmd())
	return root
}

func (g *globalOptions) logger(cmd *cobra.Command) hclog.Logger {
	logCfg := g.cfg.Log
	if g.verbose {
		logCfg.Level = "debug"
	}
	return logging.NewWithOutput("iconify", logCfg, cmd.ErrOrStderr())
}
