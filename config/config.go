// Package config holds the settings shared by every surfscan command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/machine"
	"github.com/mastercactapus/surfscan/machine/sim"
	"github.com/mastercactapus/surfscan/meshlevel"
	"gopkg.in/yaml.v3"
)

// Sensor kinds.
const (
	SensorGPIO    = "gpio"
	SensorEndstop = "endstop"
	SensorSim     = "sim"
)

// Config is the top-level surfscan.yml
type Config struct {
	Port        string         `yaml:"port"`
	Baud        int            `yaml:"baud"`
	SPJS        string         `yaml:"spjs,omitempty"` // websocket URL of a serial-port-json-server
	ReadTimeout time.Duration  `yaml:"read_timeout"`
	Sensor      SensorConfig   `yaml:"sensor"`
	Limits      machine.Limits `yaml:"limits"`
	Scan        ScanConfig     `yaml:"scan"`
	Log         LogConfig      `yaml:"log"`
	Sim         SimConfig      `yaml:"sim"`
}

type SensorConfig struct {
	Kind      string `yaml:"kind"`
	Pin       string `yaml:"pin"`
	ActiveLow bool   `yaml:"active_low"`
	Endstop   string `yaml:"endstop"` // M119 switch name
}

type ScanConfig struct {
	Step   float64 `yaml:"step"`
	Output string  `yaml:"output"`
}

type LogConfig struct {
	Mode string `yaml:"mode"` // "development" or "production"
}

// SimConfig describes the synthetic surface used with --sim. Three or
// more Surface points form a triangulated surface, otherwise it is flat
// at SurfaceZ.
type SimConfig struct {
	SurfaceZ float64       `yaml:"surface_z"`
	Surface  []coord.Point `yaml:"surface,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Port:        "/dev/ttyACM0",
		Baud:        115200,
		ReadTimeout: machine.DefaultReadTimeout,
		Sensor: SensorConfig{
			Kind:      SensorGPIO,
			Pin:       "GPIO24",
			ActiveLow: true,
			Endstop:   "z_probe",
		},
		Limits: machine.DefaultLimits(),
		Scan: ScanConfig{
			Step:   10,
			Output: "~/cnc.rpf",
		},
		Log: LogConfig{Mode: "development"},
		Sim: SimConfig{SurfaceZ: -2},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be > 0, got %d", c.Baud)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be > 0, got %s", c.ReadTimeout)
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	if c.Scan.Step <= 0 {
		return fmt.Errorf("scan.step must be > 0, got %g", c.Scan.Step)
	}
	if c.Scan.Output == "" {
		return errors.New("scan.output is required")
	}

	switch c.Sensor.Kind {
	case SensorGPIO:
		if c.Sensor.Pin == "" {
			return errors.New("sensor.pin is required for gpio sensors")
		}
	case SensorEndstop:
		if c.Sensor.Endstop == "" {
			return errors.New("sensor.endstop is required for endstop sensors")
		}
	case SensorSim:
	default:
		return fmt.Errorf("sensor.kind: unknown kind '%s' (expected gpio, endstop or sim)", c.Sensor.Kind)
	}

	if n := len(c.Sim.Surface); n > 0 && n < 3 {
		return fmt.Errorf("sim.surface needs at least 3 points, got %d", n)
	}
	return nil
}

// SimSurface builds the configured synthetic surface.
func (c *Config) SimSurface() (sim.Surface, error) {
	if len(c.Sim.Surface) == 0 {
		return sim.Flat(c.Sim.SurfaceZ), nil
	}
	mesh, err := meshlevel.NewMesh(c.Sim.Surface)
	if err != nil {
		return nil, fmt.Errorf("sim.surface: %w", err)
	}
	return mesh, nil
}
