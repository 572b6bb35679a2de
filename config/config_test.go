package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mastercactapus/surfscan/machine/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 115200, cfg.Baud)
	assert.Equal(t, 5.0, cfg.Limits.MaxProbeTravel)
	assert.Equal(t, 0.1, cfg.Limits.StepZ)
	assert.Equal(t, 300, cfg.Limits.SearchFeed)
	assert.Equal(t, 1800, cfg.Limits.RetractFeed)
	assert.Equal(t, 1800, cfg.Limits.TravelFeed)
	assert.Equal(t, 30*time.Millisecond, cfg.Limits.SettleMargin)
	assert.Equal(t, 10.0, cfg.Scan.Step)
	assert.Equal(t, "~/cnc.rpf", cfg.Scan.Output)
	assert.Equal(t, "GPIO24", cfg.Sensor.Pin)
	assert.True(t, cfg.Sensor.ActiveLow)
}

func TestParse_Overlay(t *testing.T) {
	cfg, err := Parse([]byte(`
port: /dev/ttyUSB1
read_timeout: 500ms
sensor:
  kind: endstop
limits:
  step_z: 0.05
  settle_margin: 10ms
scan:
  step: 2.5
`))
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.ReadTimeout)
	assert.Equal(t, SensorEndstop, cfg.Sensor.Kind)
	assert.Equal(t, "z_probe", cfg.Sensor.Endstop, "untouched keys keep defaults")
	assert.Equal(t, 0.05, cfg.Limits.StepZ)
	assert.Equal(t, 5.0, cfg.Limits.MaxProbeTravel)
	assert.Equal(t, 10*time.Millisecond, cfg.Limits.SettleMargin)
	assert.Equal(t, 2.5, cfg.Scan.Step)
	assert.Equal(t, 115200, cfg.Baud)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	for name, data := range map[string]string{
		"unknown key":   "prot: /dev/ttyUSB0\n",
		"bad baud":      "baud: 0\n",
		"bad step":      "scan:\n  step: -1\n",
		"bad limits":    "limits:\n  step_z: 10\n",
		"bad sensor":    "sensor:\n  kind: laser\n",
		"no output":     "scan:\n  output: ''\n",
		"short surface": "sim:\n  surface:\n    - {x: 0, y: 0, z: 0}\n",
		"bad yaml":      "port: [\n",
	} {
		_, err := Parse([]byte(data))
		assert.Error(t, err, name)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surfscan.yml")
	require.NoError(t, os.WriteFile(path, []byte("baud: 250000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250000, cfg.Baud)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSimSurface(t *testing.T) {
	cfg := Default()
	s, err := cfg.SimSurface()
	require.NoError(t, err)
	assert.Equal(t, sim.Flat(-2), s)

	cfg, err = Parse([]byte(`
sim:
  surface:
    - {x: 0, y: 0, z: -1}
    - {x: 10, y: 0, z: -2}
    - {x: 0, y: 10, z: -1}
`))
	require.NoError(t, err)
	s, err = cfg.SimSurface()
	require.NoError(t, err)
	ok, z := s.OffsetZ(5, 0)
	assert.True(t, ok)
	assert.InDelta(t, -1.5, z, 1e-9)
}
