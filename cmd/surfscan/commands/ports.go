package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/mastercactapus/surfscan/logger"
	"github.com/mastercactapus/surfscan/machine/marlin"
	"github.com/mastercactapus/surfscan/spjs"
	"github.com/spf13/cobra"
)

const listTimeout = 10 * time.Second

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if cfg.SPJS == "" {
			ports, err := marlin.ListPorts()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "serial ports:")
			for _, p := range ports {
				fmt.Fprintln(out, p)
			}
			return nil
		}

		sp := spjs.NewSPJS(cfg.SPJS, logger.Nop())
		defer sp.Close()
		ctx, cancel := context.WithTimeout(cmd.Context(), listTimeout)
		defer cancel()
		ports, err := spjs.ListPorts(ctx, sp)
		if err != nil {
			return fmt.Errorf("list ports on %s: %w", cfg.SPJS, err)
		}
		fmt.Fprintf(out, "serial ports on %s:\n", cfg.SPJS)
		for _, p := range ports {
			state := "closed"
			if p.IsOpen {
				state = fmt.Sprintf("open at %d", p.Baud)
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", p.Name, p.Friendly, state)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
