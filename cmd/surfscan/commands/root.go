package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mastercactapus/surfscan/config"
	"github.com/mastercactapus/surfscan/logger"
	"github.com/spf13/cobra"
)

var red = color.New(color.FgRed, color.Bold)

// globals holds the persistent flags.
type globals struct {
	configPath string
	port       string
	baud       int
	spjs       string
	sim        bool
	logMode    string
	step       float64
	output     string
}

var flags globals

// rootCmd runs the interactive shell when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:   "surfscan",
	Short: "Map a work surface by touch probing on a Marlin machine",
	Long: `surfscan drives a Marlin based CNC machine over serial and probes the
surface under the spindle on a rectangular grid, saving one x, y, z line
per point to a raw probe file (rpf).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd)
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command and prints any error in red.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	err := rootCmd.Execute()
	if err != nil {
		red.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return err
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML config file")
	pf.StringVarP(&flags.port, "port", "p", "", "serial port (or port name on the SPJS server)")
	pf.IntVar(&flags.baud, "baud", 0, "serial baud rate")
	pf.StringVar(&flags.spjs, "spjs", "", "websocket URL of a serial-port-json-server, e.g. ws://cnc-bridge:8989/ws")
	pf.BoolVar(&flags.sim, "sim", false, "use a simulated machine and probe")
	pf.StringVar(&flags.logMode, "log", "", "log mode: development or production")
	pf.Float64VarP(&flags.step, "step", "s", 0, "grid spacing in mm")
	pf.StringVarP(&flags.output, "output", "o", "", "raw probe file to write")
}

// loadConfig reads --config (if any) and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		var err error
		cfg, err = config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
	}

	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Port = flags.port
	}
	if f.Changed("baud") {
		cfg.Baud = flags.baud
	}
	if f.Changed("spjs") {
		cfg.SPJS = flags.spjs
	}
	if f.Changed("log") {
		cfg.Log.Mode = flags.logMode
	}
	if flags.sim {
		cfg.Sensor.Kind = config.SensorSim
	}
	if f.Changed("step") {
		cfg.Scan.Step = flags.step
	}
	if f.Changed("output") {
		cfg.Scan.Output = flags.output
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(cfg.Log.Mode)
}

// parsePair reads "x,y".
func parsePair(s string) (x, y float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid coordinate %q, want x,y", s)
	}
	x, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid coordinate %q: %w", s, err)
	}
	y, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid coordinate %q: %w", s, err)
	}
	return x, y, nil
}
