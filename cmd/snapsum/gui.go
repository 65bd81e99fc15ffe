package main

import (
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"github.com/ironsheep/snapsum/internal/ui"
)

const appID = "io.github.ironsheep.snapsum"

func (c *cli) guiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Open the desktop app (default)",
		Args:  cobra.NoArgs,
		RunE:  c.runGUI,
	}
}

func (c *cli) runGUI(cmd *cobra.Command, args []string) error {
	worker := c.newWorker()
	defer closeWorker(worker)

	ui.New(fyneapp.NewWithID(appID), c.cfg, worker).Run()
	return nil
}
