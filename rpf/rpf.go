// Package rpf reads and writes raw probe files: one "x, y, z" line per
// probed point. Points where the probe never made contact carry a fourth
// "nocontact" field. Lines starting with # are comments.
package rpf

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/machine"
)

const noContact = "nocontact"

// Writer is a machine.ResultSink that appends one line per result.
type Writer struct {
	mx sync.Mutex
	w  io.Writer
}

var _ machine.ResultSink = &Writer{}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// ExpandPath replaces a leading "~/" with the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}

// Create truncates (or creates) path and returns a Writer for it. The
// caller must Close it.
func Create(path string) (*Writer, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return NewWriter(f), nil
}

// Comment writes a # line.
func (w *Writer) Comment(text string) error {
	w.mx.Lock()
	defer w.mx.Unlock()
	_, err := fmt.Fprintf(w.w, "# %s\n", text)
	return err
}

// Record writes r and flushes it to stable storage when the underlying
// writer supports it, so an interrupted scan keeps every finished point.
func (w *Writer) Record(r machine.ProbeResult) error {
	w.mx.Lock()
	defer w.mx.Unlock()

	var err error
	if r.Valid {
		_, err = fmt.Fprintf(w.w, "%.3f, %.3f, %.3f\n", r.X, r.Y, r.Z)
	} else {
		_, err = fmt.Fprintf(w.w, "%.3f, %.3f, %.3f, %s\n", r.X, r.Y, r.Z, noContact)
	}
	if err != nil {
		return err
	}
	if s, ok := w.w.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

func (w *Writer) Close() error {
	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Reader parses the format produced by Writer.
type Reader struct {
	r *csv.Reader
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	return &Reader{r: cr}
}

// Read returns the next result, or io.EOF.
func (r *Reader) Read() (machine.ProbeResult, error) {
	rec, err := r.r.Read()
	if err != nil {
		return machine.ProbeResult{}, err
	}
	line, _ := r.r.FieldPos(0)

	var res machine.ProbeResult
	switch len(rec) {
	case 3:
		res.Valid = true
	case 4:
		if strings.TrimSpace(rec[3]) != noContact {
			return res, fmt.Errorf("rpf line %d: unknown flag %q", line, rec[3])
		}
	default:
		return res, fmt.Errorf("rpf line %d: want 3 or 4 fields, got %d", line, len(rec))
	}

	var p coord.Point
	for i, dst := range []*float64{&p.X, &p.Y, &p.Z} {
		*dst, err = strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return res, fmt.Errorf("rpf line %d: %w", line, err)
		}
	}
	res.Point = p
	return res, nil
}

// ReadAll reads results until EOF.
func (r *Reader) ReadAll() ([]machine.ProbeResult, error) {
	var res []machine.ProbeResult
	for {
		p, err := r.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res = append(res, p)
	}
}

// ReadFile loads every result in path.
func ReadFile(path string) ([]machine.ProbeResult, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}
