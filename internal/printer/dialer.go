package printer

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/orrn/todoprint/internal/config"
)

// Strategy is one candidate connection to try, in order.
type Strategy struct {
	Name      string
	Transport Transport
}

// StrategyError records which strategy failed and why.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s: %v", e.Strategy, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// fallbackPorts are tried after the configured port for network printers.
var fallbackPorts = []int{9100, 515}

// Strategies builds the ordered candidate list for the configured printer.
func Strategies(cfg config.PrinterConfig) []Strategy {
	switch cfg.Type {
	case "serial":
		return []Strategy{{
			Name:      "serial " + cfg.SerialPort,
			Transport: NewSerialTransport(cfg.SerialPort, cfg.BaudRate),
		}}
	default:
		var strategies []Strategy
		seen := map[int]bool{}
		ports := append([]int{cfg.Port}, fallbackPorts...)
		for _, port := range ports {
			if port == 0 || seen[port] {
				continue
			}
			seen[port] = true
			addr := net.JoinHostPort(cfg.Address, strconv.Itoa(port))
			strategies = append(strategies, Strategy{
				Name:      "tcp " + addr,
				Transport: NewNetworkTransport(addr, cfg.ConnectTimeout, cfg.WriteTimeout),
			})
		}
		return strategies
	}
}

// Fallback is a Transport that tries its strategies in order on every
// connect and sticks with the first one that succeeds. Each strategy's
// failure is kept as a typed StrategyError; nothing is swallowed.
type Fallback struct {
	strategies []Strategy
	active     Transport
}

func NewFallback(strategies []Strategy) *Fallback {
	return &Fallback{strategies: strategies}
}

func (f *Fallback) Connect() error {
	if f.active != nil && f.active.Connected() {
		return nil
	}
	f.active = nil

	var errs []error
	for _, s := range f.strategies {
		if err := s.Transport.Connect(); err != nil {
			errs = append(errs, &StrategyError{Strategy: s.Name, Err: err})
			continue
		}
		f.active = s.Transport
		return nil
	}
	return errors.Join(append([]error{ErrConnectionFailed}, errs...)...)
}

func (f *Fallback) Write(data []byte) error {
	if f.active == nil {
		return ErrNotConnected
	}
	return f.active.Write(data)
}

func (f *Fallback) Close() error {
	if f.active == nil {
		return nil
	}
	err := f.active.Close()
	f.active = nil
	return err
}

func (f *Fallback) Connected() bool {
	return f.active != nil && f.active.Connected()
}
