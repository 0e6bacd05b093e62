package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gotmc/prologix"
	"github.com/tarm/serial"
)

// GPIBConfig configures a Prologix GPIB-USB controller.
type GPIBConfig struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
	WriteDelay  time.Duration `yaml:"writeDelay"`
}

// DefaultGPIBConfig returns settings that work with Prologix and AR488
// controllers.
func DefaultGPIBConfig() GPIBConfig {
	return GPIBConfig{
		Port:        "/dev/ttyUSB0",
		Baud:        115200,
		ReadTimeout: 3 * time.Second,
		WriteDelay:  100 * time.Millisecond,
	}
}

// GPIB is a link to one instrument behind a Prologix controller. The
// controller does not support cancellation, so ctx is only checked before
// each transaction.
type GPIB struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
	ctrl *prologix.Controller
}

// OpenGPIB opens the controller's serial port and addresses the instrument
// at primary address addr. secondary < 0 means none.
func OpenGPIB(cfg GPIBConfig, addr, secondary int) (*GPIB, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	g, err := NewGPIB(port, addr, secondary, cfg.WriteDelay)
	if err != nil {
		port.Close()
		return nil, err
	}
	return g, nil
}

// NewGPIB builds a controller over an open port.
func NewGPIB(port io.ReadWriteCloser, addr, secondary int, writeDelay time.Duration) (*GPIB, error) {
	opts := []prologix.ControllerOption{prologix.WithWriteDelay(writeDelay)}
	if secondary >= 0 {
		opts = append(opts, prologix.WithSecondaryAddress(secondary))
	}
	ctrl, err := prologix.NewController(port, addr, false, opts...)
	if err != nil {
		return nil, fmt.Errorf("prologix controller at GPIB %d: %w", addr, err)
	}
	return &GPIB{port: port, ctrl: ctrl}, nil
}

func (g *GPIB) Write(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ctrl.Command(cmd)
}

func (g *GPIB) Query(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	resp, err := g.ctrl.Query(cmd)
	// The controller reports io.EOF alongside a complete line.
	if err != nil && !(errors.Is(err, io.EOF) && resp != "") {
		return "", err
	}
	return strings.TrimRight(resp, "\r\n"), nil
}

// Close returns the instrument to front panel control and closes the port.
func (g *GPIB) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.ctrl.FrontPanel(true), g.port.Close())
}
