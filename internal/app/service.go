package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gajzzs/xstorage/internal/service"
)

func NewServiceCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the xstorage bridge service",
	}

	manager := func() (*service.ServiceManager, error) {
		daemon := service.NewDaemon(rt.Router, rt.Config.Bridge.Socket, rt.Log.Named("daemon"))
		return service.NewServiceManager(daemon)
	}

	action := func(use, short, done string, run func(*service.ServiceManager) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				sm, err := manager()
				if err != nil {
					return err
				}
				if err := run(sm); err != nil {
					return fmt.Errorf("failed to %s service: %w", use, err)
				}
				if done != "" {
					fmt.Fprintln(cmd.OutOrStdout(), done)
				}
				return nil
			},
		}
	}

	cmd.AddCommand(
		action("install", "Install the bridge as a system service", "Service installed",
			(*service.ServiceManager).Install),
		action("uninstall", "Remove the system service", "Service uninstalled",
			(*service.ServiceManager).Uninstall),
		action("start", "Start the installed service", "Service started",
			(*service.ServiceManager).Start),
		action("stop", "Stop the installed service", "Service stopped",
			(*service.ServiceManager).Stop),
		action("run", "Run the bridge in the foreground under the service manager", "",
			(*service.ServiceManager).Run),
		&cobra.Command{
			Use:   "status",
			Short: "Show service status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				sm, err := manager()
				if err != nil {
					return err
				}
				status, err := sm.Status()
				fmt.Fprintf(cmd.OutOrStdout(), "Service status: %s\n", status)
				fmt.Fprintf(cmd.OutOrStdout(), "Config: %s\n", service.ServiceConfigPath())
				fmt.Fprintf(cmd.OutOrStdout(), "Socket: %s\n", rt.Config.Bridge.Socket)
				return err
			},
		},
	)

	return cmd
}
