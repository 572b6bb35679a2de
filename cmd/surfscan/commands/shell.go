package commands

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/mastercactapus/surfscan/machine"
	"github.com/mastercactapus/surfscan/rpf"
	"github.com/mastercactapus/surfscan/shell"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive jog, mark and probe shell (default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd)
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// openResults truncates the configured rpf output and writes a header.
func openResults(path string) (*rpf.Writer, error) {
	w, err := rpf.Create(path)
	if err != nil {
		return nil, err
	}
	if err := w.Comment("surfscan " + time.Now().Format(time.RFC3339)); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// interruptible stops a scan on Ctrl-C without leaving the shell.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

func runShell(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	s, err := connect(cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	sh := &shell.Shell{
		C:    s.c,
		In:   cmd.InOrStdin(),
		Out:  cmd.OutOrStdout(),
		Step: cfg.Scan.Step,
		OpenSink: func() (machine.ResultSink, error) {
			return openResults(cfg.Scan.Output)
		},
		ScanContext: interruptible,
	}
	return sh.Run(cmd.Context())
}
