package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/logger"
	"github.com/mastercactapus/surfscan/machine"
	"github.com/mastercactapus/surfscan/rpf"
	"go.uber.org/zap"
)

const defaultResultName = "surface.rpf"

type api struct {
	http.Handler
	log     *logger.Logger
	dataDir string
	sse     *sse.Server

	// publish sends v as JSON on /events/<channel>.
	publish func(channel string, v interface{})

	// mx is held for the whole of every request that uses c.
	mx sync.Mutex
	c  *machine.Controller

	cancelMx   sync.Mutex
	cancelScan context.CancelFunc
}

type state struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Fault string  `json:"fault,omitempty"`
}

type point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Valid bool    `json:"valid"`
}

type moveRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	Feed int     `json:"feed"`
}

func newAPI(c *machine.Controller, dir string, log *logger.Logger) *api {
	r := mux.NewRouter()

	a := &api{
		Handler: r,
		log:     log,
		c:       c,
		dataDir: dir,
		sse: sse.NewServer(&sse.Options{
			Logger: zap.NewStdLog(log.SugaredLogger.Desugar()),
		}),
	}
	a.publish = a.sendEvent

	fs := http.FileServer(http.Dir(dir))
	r.PathPrefix("/data/").Handler(http.StripPrefix("/data", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case "GET":
			fs.ServeHTTP(w, req)
		case "PUT":
			a.putFile(w, req)
		case "DELETE":
			a.deleteFile(w, req)
		default:
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		}
	})))

	r.HandleFunc("/api/position", a.locked(a.position)).Methods("GET")
	r.HandleFunc("/api/move", a.locked(a.move)).Methods("POST")
	r.HandleFunc("/api/jog", a.locked(a.move)).Methods("POST")
	r.HandleFunc("/api/mark/{corner:start|end}", a.locked(a.mark)).Methods("POST")
	r.HandleFunc("/api/resume", a.locked(a.resume)).Methods("POST")
	r.HandleFunc("/api/scan", a.locked(a.scan)).Methods("POST")
	r.HandleFunc("/api/scan/cancel", a.cancel).Methods("POST")

	r.PathPrefix("/events/").Handler(a.sse)

	return a
}

func (a *api) Close() { a.sse.Shutdown() }

func (a *api) sendEvent(channel string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		a.log.Error("marshal event", "channel", channel, "error", err)
		return
	}
	a.sse.SendMessage("/events/"+channel, sse.SimpleMessage(string(data)))
}

// locked rejects the request with 409 while another one holds the machine.
func (a *api) locked(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !a.mx.TryLock() {
			http.Error(w, "machine busy", http.StatusConflict)
			return
		}
		defer a.mx.Unlock()
		fn(w, req)
	}
}

func (a *api) state() state {
	p := a.c.Current()
	s := state{X: p.X, Y: p.Y, Z: p.Z}
	if err := a.c.Fault(); err != nil {
		s.Fault = err.Error()
	}
	return s
}

func (a *api) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		a.log.Warn("encode response", "error", err)
	}
}

// fail maps controller errors onto status codes.
func (a *api) fail(w http.ResponseWriter, op string, err error) {
	var pe *machine.PreconditionError
	var he *machine.HaltedError
	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &pe):
		code = http.StatusBadRequest
	case errors.As(err, &he):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		code = http.StatusConflict
	}
	a.log.Error(op, "error", err)
	http.Error(w, err.Error(), code)
}

func (a *api) position(w http.ResponseWriter, req *http.Request) {
	if req.FormValue("refresh") == "1" {
		if _, err := a.c.Refresh(); err != nil {
			a.fail(w, "refresh", err)
			return
		}
	}
	a.writeJSON(w, a.state())
}

// move handles both /api/move (absolute) and /api/jog (relative).
func (a *api) move(w http.ResponseWriter, req *http.Request) {
	var m moveRequest
	if err := json.NewDecoder(req.Body).Decode(&m); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if m.Feed == 0 {
		m.Feed = a.c.Limits().TravelFeed
	}

	target := coord.Point{X: m.X, Y: m.Y, Z: m.Z}
	var err error
	if strings.HasSuffix(req.URL.Path, "/jog") {
		_, err = a.c.Jog(target, m.Feed)
	} else {
		_, err = a.c.MoveTo(target, m.Feed)
	}
	a.publish("state", a.state())
	if err != nil {
		a.fail(w, "move", err)
		return
	}
	a.writeJSON(w, a.state())
}

func (a *api) mark(w http.ResponseWriter, req *http.Request) {
	var p coord.Point
	if mux.Vars(req)["corner"] == "start" {
		p = a.c.MarkStart()
	} else {
		p = a.c.MarkEnd()
	}
	a.writeJSON(w, state{X: p.X, Y: p.Y, Z: p.Z})
}

func (a *api) resume(w http.ResponseWriter, req *http.Request) {
	_, err := a.c.Resume()
	a.publish("state", a.state())
	if err != nil {
		a.fail(w, "resume", err)
		return
	}
	a.writeJSON(w, a.state())
}

func (a *api) cancel(w http.ResponseWriter, req *http.Request) {
	a.cancelMx.Lock()
	defer a.cancelMx.Unlock()
	if a.cancelScan == nil {
		http.Error(w, "no scan running", http.StatusConflict)
		return
	}
	a.cancelScan()
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) scan(w http.ResponseWriter, req *http.Request) {
	step, err := strconv.ParseFloat(req.FormValue("step"), 64)
	if err != nil {
		http.Error(w, "invalid step: "+err.Error(), http.StatusBadRequest)
		return
	}
	name := req.FormValue("name")
	if name == "" {
		name = defaultResultName
	}
	ok, fullName := safePath(a.dataDir, name)
	if !ok {
		http.Error(w, "invalid name", http.StatusBadRequest)
		return
	}
	if err := a.c.CheckScan(step); err != nil {
		a.fail(w, "scan", err)
		return
	}

	os.MkdirAll(filepath.Dir(fullName), 0755)
	out, err := rpf.Create(fullName)
	if err != nil {
		a.fail(w, "create "+name, err)
		return
	}
	defer out.Close()

	ctx, cancel := context.WithCancel(req.Context())
	a.cancelMx.Lock()
	a.cancelScan = cancel
	a.cancelMx.Unlock()
	defer func() {
		a.cancelMx.Lock()
		a.cancelScan = nil
		a.cancelMx.Unlock()
		cancel()
	}()

	events := machine.SinkFunc(func(r machine.ProbeResult) error {
		a.publish("points", point{X: r.X, Y: r.Y, Z: r.Z, Valid: r.Valid})
		return nil
	})
	sum, err := a.c.Scan(ctx, step, machine.MultiSink(out, events))
	a.publish("state", a.state())
	if err != nil {
		a.fail(w, "scan "+sum.ID, err)
		return
	}
	a.writeJSON(w, sum)
}

func safePath(base, name string) (bool, string) {
	if filepath.Separator != '/' && strings.ContainsRune(name, filepath.Separator) {
		return false, ""
	}
	dir := base
	if dir == "" {
		dir = "."
	}
	fullName := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+name)))
	return true, fullName
}

func (a *api) putFile(w http.ResponseWriter, req *http.Request) {
	ok, name := safePath(a.dataDir, req.URL.Path)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	os.MkdirAll(filepath.Dir(name), 0755)
	f, err := os.Create(name)
	if err != nil {
		a.fail(w, "create "+name, err)
		return
	}
	defer f.Close()
	_, err = io.Copy(f, req.Body)
	if err != nil {
		a.fail(w, "write "+name, err)
		return
	}
}

func (a *api) deleteFile(w http.ResponseWriter, req *http.Request) {
	ok, name := safePath(a.dataDir, req.URL.Path)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	err := os.Remove(name)
	if err != nil {
		a.fail(w, "delete "+name, err)
		return
	}
}
