package commands

import (
	"fmt"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/spf13/cobra"
)

var scanFlags struct {
	start string
	end   string
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Probe the rectangle between two corners without the shell",
	Long: `scan moves to --start and marks it, moves to --end and marks it, then
probes the grid between them at the current Z height. Results are written
to the configured rpf file. Ctrl-C stops after the current point.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFlags.start, "start", "", "start corner x,y")
	scanCmd.Flags().StringVar(&scanFlags.end, "end", "", "end corner x,y")
	scanCmd.MarkFlagRequired("start")
	scanCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	sx, sy, err := parsePair(scanFlags.start)
	if err != nil {
		return err
	}
	ex, ey, err := parsePair(scanFlags.end)
	if err != nil {
		return err
	}

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
	c := s.c

	feed := cfg.Limits.TravelFeed
	z := c.Current().Z
	if _, err := c.MoveTo(coord.Point{X: sx, Y: sy, Z: z}, feed); err != nil {
		return err
	}
	c.MarkStart()
	if _, err := c.MoveTo(coord.Point{X: ex, Y: ey, Z: z}, feed); err != nil {
		return err
	}
	c.MarkEnd()
	if err := c.CheckScan(cfg.Scan.Step); err != nil {
		return err
	}

	w, err := openResults(cfg.Scan.Output)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, cancel := interruptible(cmd.Context())
	defer cancel()
	sum, err := c.Scan(ctx, cfg.Scan.Step, w)
	if err != nil {
		return fmt.Errorf("scan %s stopped after %d points: %w", sum.ID, sum.Points, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scan %s: %d points (%d without contact) written to %s\n",
		sum.ID, sum.Points, sum.NoContact, cfg.Scan.Output)
	return nil
}
