package app

import "github.com/spf13/cobra"

// NewRootCommand assembles the xstorage command tree.
func NewRootCommand(rt *Runtime) *cobra.Command {
	root := &cobra.Command{
		Use:           "xstorage",
		Short:         "Locate SD card and USB storage volumes",
		Long:          "xstorage classifies mounted volumes by their backing disk and reports SD card, USB and internal mount paths",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		NewSDCommand(rt),
		NewUSBCommand(rt),
		NewInternalCommand(rt),
		NewVolumesCommand(rt),
		NewCallCommand(rt),
		NewServeCommand(rt),
		NewStatusCommand(rt),
		NewVersionCommand(),
		NewServiceCommand(rt),
	)
	return root
}
