package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/logger"
	"github.com/mastercactapus/surfscan/machine"
	"github.com/mastercactapus/surfscan/machine/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	channel string
	data    interface{}
}

func newTestAPI(t *testing.T) (*api, *[]event) {
	t.Helper()
	m := sim.New(coord.Point{}, sim.Flat(-2))
	c, err := machine.NewController(m, m, machine.Options{
		Limits: machine.DefaultLimits(),
		Sleep:  func(time.Duration) {},
	})
	require.NoError(t, err)
	require.NoError(t, c.Init())

	a := newAPI(c, t.TempDir(), logger.Nop())
	t.Cleanup(a.Close)

	var mx sync.Mutex
	var events []event
	a.publish = func(channel string, v interface{}) {
		mx.Lock()
		defer mx.Unlock()
		events = append(events, event{channel, v})
	}
	return a, &events
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestAPI_Scan(t *testing.T) {
	a, events := newTestAPI(t)

	rec := do(t, a, "POST", "/api/scan?step=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "corners not marked")

	rec = do(t, a, "POST", "/api/mark/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, a, "POST", "/api/jog", `{"x":2,"y":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st state
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, state{X: 2, Y: 2}, st)

	rec = do(t, a, "POST", "/api/mark/end", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, a, "POST", "/api/scan?step=1&name=bed.rpf", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum machine.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 9, sum.Points)
	assert.NotEmpty(t, sum.ID)

	data, err := os.ReadFile(filepath.Join(a.dataDir, "bed.rpf"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 9)
	assert.Equal(t, "0.000, 0.000, -2.000", lines[0])

	var points []point
	for _, e := range *events {
		if e.channel == "points" {
			points = append(points, e.data.(point))
		}
	}
	require.Len(t, points, 9)
	assert.Equal(t, point{X: 2, Y: 2, Z: -2, Valid: true}, points[8])

	rec = do(t, a, "GET", "/data/bed.rpf", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(data), rec.Body.String())

	// a rejected scan leaves the last results alone
	rec = do(t, a, "POST", "/api/scan?step=0&name=bed.rpf", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	after, err := os.ReadFile(filepath.Join(a.dataDir, "bed.rpf"))
	require.NoError(t, err)
	assert.Equal(t, string(data), string(after))
}

func TestAPI_Position(t *testing.T) {
	a, _ := newTestAPI(t)

	rec := do(t, a, "POST", "/api/move", `{"x":1,"y":-1,"z":3,"feed":600}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, a, "GET", "/api/position?refresh=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st state
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, state{X: 1, Y: -1, Z: 3}, st)

	rec = do(t, a, "POST", "/api/move", `{"x":1,"feed":-5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, a, "POST", "/api/move", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, a, "GET", "/api/move", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAPI_Busy(t *testing.T) {
	a, _ := newTestAPI(t)

	a.mx.Lock()
	rec := do(t, a, "GET", "/api/position", "")
	a.mx.Unlock()
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, a, "POST", "/api/scan/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "nothing to cancel")
}

func TestAPI_Files(t *testing.T) {
	a, _ := newTestAPI(t)

	rec := do(t, a, "PUT", "/data/jobs/part.nc", "G1 X1\n")
	require.Equal(t, http.StatusOK, rec.Code)
	data, err := os.ReadFile(filepath.Join(a.dataDir, "jobs", "part.nc"))
	require.NoError(t, err)
	assert.Equal(t, "G1 X1\n", string(data))

	rec = do(t, a, "DELETE", "/data/jobs/part.nc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = os.Stat(filepath.Join(a.dataDir, "jobs", "part.nc"))
	assert.True(t, os.IsNotExist(err))
}

func TestSafePath(t *testing.T) {
	ok, p := safePath("/srv/data", "../../etc/passwd")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join("/srv/data", "etc", "passwd"), p)
}
