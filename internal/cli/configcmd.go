package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/npmlens/internal/config"
)

// configCommand creates the config command group.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
		Long: `Inspect the configuration.

Settings are read from the config file, then from a .env file in the working
directory, then from NPMLENS_* environment variables, then from flags.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.Path
			if path == "" {
				path = config.DefaultPath()
			}
			fmt.Fprintln(c.Out, path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.cfg.Write(c.Out)
		},
	})

	return cmd
}
