package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/mastercactapus/surfscan/config"
	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/logger"
	"github.com/mastercactapus/surfscan/machine"
	"github.com/mastercactapus/surfscan/machine/gpio"
	"github.com/mastercactapus/surfscan/machine/marlin"
	"github.com/mastercactapus/surfscan/machine/sim"
	"github.com/mastercactapus/surfscan/spjs"
)

// session is a connected, initialized controller and whatever must be
// closed with it.
type session struct {
	cfg *config.Config
	log *logger.Logger
	c   *machine.Controller

	closers []io.Closer
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// connect opens the transport and sensor described by cfg. With the sim
// sensor kind both are a simulated machine.
func connect(cfg *config.Config, log *logger.Logger) (*session, error) {
	s := &session{cfg: cfg, log: log}
	t, sensor, err := s.open()
	if err != nil {
		s.Close()
		return nil, err
	}

	s.c, err = machine.NewController(t, sensor, machine.Options{
		Limits:      cfg.Limits,
		ReadTimeout: cfg.ReadTimeout,
		Log:         log,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := s.c.Init(); err != nil {
		s.Close()
		return nil, fmt.Errorf("init machine: %w", err)
	}
	log.Info("connected", "position", s.c.Current().String())
	return s, nil
}

func (s *session) open() (machine.Transport, machine.Sensor, error) {
	cfg := s.cfg
	if cfg.Sensor.Kind == config.SensorSim {
		surface, err := cfg.SimSurface()
		if err != nil {
			return nil, nil, err
		}
		m := sim.New(coord.Point{}, surface)
		s.log.Info("using simulated machine")
		return m, m, nil
	}

	var t machine.Transport
	if cfg.SPJS != "" {
		sp := spjs.NewSPJS(cfg.SPJS, s.log)
		s.closers = append(s.closers, sp)
		st, err := spjs.Open(sp, cfg.Port, cfg.Baud)
		if err != nil {
			return nil, nil, err
		}
		t = st
	} else {
		conn, err := marlin.OpenSerial(cfg.Port, cfg.Baud)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", cfg.Port, err)
		}
		s.closers = append(s.closers, conn)
		t = conn
	}
	s.log.Info("opened port", "port", cfg.Port, "baud", cfg.Baud)

	switch cfg.Sensor.Kind {
	case config.SensorEndstop:
		return t, &marlin.EndstopSensor{T: t, Name: cfg.Sensor.Endstop, Timeout: cfg.ReadTimeout}, nil
	case config.SensorGPIO:
		sensor, err := gpio.Open(cfg.Sensor.Pin, cfg.Sensor.ActiveLow)
		if err != nil {
			return nil, nil, fmt.Errorf("open sensor %s: %w", cfg.Sensor.Pin, err)
		}
		return t, sensor, nil
	}
	return nil, nil, fmt.Errorf("unsupported sensor kind '%s'", cfg.Sensor.Kind)
}
