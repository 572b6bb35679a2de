package commands

import (
	"fmt"
	"os"

	"github.com/mastercactapus/surfscan/meshlevel"
	"github.com/mastercactapus/surfscan/rpf"
	"github.com/spf13/cobra"
)

var levelFlags struct {
	mapPath     string
	in          string
	out         string
	granularity float64
}

var levelCmd = &cobra.Command{
	Use:   "level",
	Short: "Adjust a G-code program to follow a probed surface",
	Long: `level reads a height map from an rpf file and rewrites the Z of every
move in a G-code program by the surface height change under it. Moves
longer than --granularity are split first. The program must start at the
work origin, which should be the first probed point.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := rpf.ReadFile(levelFlags.mapPath)
		if err != nil {
			return err
		}
		mesh, err := meshlevel.FromResults(results)
		if err != nil {
			return fmt.Errorf("%s: %w", levelFlags.mapPath, err)
		}

		in, err := os.Open(levelFlags.in)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.Create(levelFlags.out)
		if err != nil {
			return err
		}
		n, err := meshlevel.Level(out, in, mesh, levelFlags.granularity)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("level %s: %w", levelFlags.in, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", n, levelFlags.out)
		return nil
	},
}

func init() {
	f := levelCmd.Flags()
	f.StringVar(&levelFlags.mapPath, "map", "~/cnc.rpf", "rpf height map")
	f.StringVar(&levelFlags.in, "in", "", "G-code program to level")
	f.StringVar(&levelFlags.out, "out", "", "where to write the leveled program")
	f.Float64Var(&levelFlags.granularity, "granularity", 1, "longest move left unsplit, in mm")
	levelCmd.MarkFlagRequired("in")
	levelCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(levelCmd)
}
