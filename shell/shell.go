// Package shell is the interactive line-oriented front end to a Controller.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/machine"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Shell reads one command per line from In and reports to Out.
type Shell struct {
	C   *machine.Controller
	In  io.Reader
	Out io.Writer

	// Step is the grid spacing used by probe when no argument is given.
	Step float64

	// OpenSink returns where scan results go. A sink that is also an
	// io.Closer is closed when the scan ends.
	OpenSink func() (machine.ResultSink, error)

	// ScanContext bounds a single scan; the CLI cancels it on interrupt.
	ScanContext func(parent context.Context) (context.Context, context.CancelFunc)
}

const help = `commands:
  mv x:<d> y:<d> z:<d> [s:<feed>]  jog by the given deltas (mm, mm/min)
  set_start                        mark the current X/Y as the start corner
  set_end                          mark the current X/Y as the end corner
  probe [step]                     scan the marked rectangle
  pos                              show the current position
  resume                           clear a halt after a fault
  help                             show this text
  quit, exit                       leave
`

var errQuit = errors.New("quit")

// Run processes commands until quit, end of input or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	sc := bufio.NewScanner(s.In)
	for {
		fmt.Fprint(s.Out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(s.Out)
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.Exec(ctx, sc.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			red.Fprintf(s.Out, "error: %v\n", err)
		}
	}
}

// Exec runs a single command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	argv := strings.Fields(line)
	if len(argv) == 0 {
		return nil
	}

	switch strings.ToLower(argv[0]) {
	case "mv":
		return s.move(argv[1:])
	case "set_start":
		p := s.C.MarkStart()
		fmt.Fprintf(s.Out, "setting start coordinate to (X%.3f, Y%.3f)\n", p.X, p.Y)
	case "set_end":
		p := s.C.MarkEnd()
		fmt.Fprintf(s.Out, "setting end coordinate to (X%.3f, Y%.3f)\n", p.X, p.Y)
	case "probe":
		return s.probe(ctx, argv[1:])
	case "pos":
		s.printPos(s.C.Current())
	case "resume":
		p, err := s.C.Resume()
		if err != nil {
			return err
		}
		green.Fprintln(s.Out, "resumed")
		s.printPos(p)
	case "help", "?":
		fmt.Fprint(s.Out, help)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", argv[0])
	}
	return nil
}

func (s *Shell) printPos(p coord.Point) {
	cyan.Fprintf(s.Out, "current position: (X:%.3f, Y:%.3f, Z:%.3f)\n", p.X, p.Y, p.Z)
}

// parseMove reads axis:delta tokens and an optional s:feed.
func parseMove(args []string, feed int) (delta coord.Point, _ int, err error) {
	seen := make(map[string]bool, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 2)
		if len(parts) != 2 {
			return delta, 0, fmt.Errorf("invalid move token %q, want axis:value", arg)
		}
		key := strings.ToLower(parts[0])
		if seen[key] {
			return delta, 0, fmt.Errorf("duplicate move token %q", arg)
		}
		seen[key] = true

		if key == "s" {
			feed, err = strconv.Atoi(parts[1])
			if err != nil || feed <= 0 {
				return delta, 0, fmt.Errorf("invalid speed %q", parts[1])
			}
			continue
		}

		v, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return delta, 0, fmt.Errorf("invalid distance %q", parts[1])
		}
		switch key {
		case "x":
			delta.X = v
		case "y":
			delta.Y = v
		case "z":
			delta.Z = v
		default:
			return delta, 0, fmt.Errorf("unknown axis %q", parts[0])
		}
	}
	return delta, feed, nil
}

func (s *Shell) move(args []string) error {
	delta, feed, err := parseMove(args, s.C.Limits().TravelFeed)
	if err != nil {
		return err
	}
	from := s.C.Current()
	to := from.Add(delta)
	fmt.Fprintf(s.Out, "moving from (X%.3f,Y%.3f,Z%.3f) to (X%.3f,Y%.3f,Z%.3f) at speed:%dmm/min\n",
		from.X, from.Y, from.Z, to.X, to.Y, to.Z, feed)

	p, err := s.C.Jog(delta, feed)
	if err != nil {
		return err
	}
	s.printPos(p)
	return nil
}

func (s *Shell) probe(ctx context.Context, args []string) error {
	step := s.Step
	switch len(args) {
	case 0:
	case 1:
		var err error
		step, err = strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid step %q", args[0])
		}
	default:
		return errors.New("usage: probe [step]")
	}

	b, err := s.C.Bounds()
	if err != nil {
		return err
	}
	// the sink may truncate the previous results, so only open it for a
	// scan that will start
	if err := s.C.CheckScan(step); err != nil {
		return err
	}
	if s.OpenSink == nil {
		return errors.New("no result sink configured")
	}
	sink, err := s.OpenSink()
	if err != nil {
		return fmt.Errorf("open results: %w", err)
	}
	if c, ok := sink.(io.Closer); ok {
		defer c.Close()
	}

	fmt.Fprintf(s.Out, "probing from (X%.3f, Y%.3f) to (X%.3f, Y%.3f) with step %gmm\n",
		b.Start.X, b.Start.Y, b.End.X, b.End.Y, step)

	newCtx := s.ScanContext
	if newCtx == nil {
		newCtx = context.WithCancel
	}
	scanCtx, cancel := newCtx(ctx)
	defer cancel()

	sum, err := s.C.Scan(scanCtx, step, machine.MultiSink(sink, machine.SinkFunc(s.printResult)))
	if err != nil {
		yellow.Fprintf(s.Out, "scan %s stopped after %d points\n", sum.ID, sum.Points)
		return err
	}
	green.Fprintf(s.Out, "scan %s complete: %d points, %d without contact\n", sum.ID, sum.Points, sum.NoContact)
	return nil
}

func (s *Shell) printResult(r machine.ProbeResult) error {
	if !r.Valid {
		yellow.Fprintf(s.Out, "(X%.3f, Y%.3f, Z%.3f) no contact\n", r.X, r.Y, r.Z)
		return nil
	}
	fmt.Fprintf(s.Out, "(X%.3f, Y%.3f, Z%.3f)\n", r.X, r.Y, r.Z)
	return nil
}
