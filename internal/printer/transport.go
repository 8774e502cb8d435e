// Package printer provides the physical transports the delivery gateway
// writes ESC/POS command streams to.
package printer

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.bug.st/serial"
)

var (
	ErrNotConnected     = errors.New("printer not connected")
	ErrConnectionFailed = errors.New("connection failed")
)

// Transport is a single stateful connection to a printer. Implementations
// are not safe for concurrent use; the gateway serializes access.
type Transport interface {
	Connect() error
	Write(data []byte) error
	Close() error
	Connected() bool
}

// NetworkTransport speaks raw TCP to a printer, port 9100 by convention.
type NetworkTransport struct {
	address        string
	connectTimeout time.Duration
	writeTimeout   time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func NewNetworkTransport(address string, connectTimeout, writeTimeout time.Duration) *NetworkTransport {
	return &NetworkTransport{
		address:        address,
		connectTimeout: connectTimeout,
		writeTimeout:   writeTimeout,
	}
}

func (t *NetworkTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("tcp", t.address, t.connectTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	t.conn = conn
	return nil
}

func (t *NetworkTransport) Write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return ErrNotConnected
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	if _, err := t.conn.Write(data); err != nil {
		// A failed write leaves the stream in an unknown state; tear the
		// connection down so the next attempt reconnects from scratch.
		t.conn.Close()
		t.conn = nil
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

func (t *NetworkTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *NetworkTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// SerialTransport drives a printer on a serial line, 8N1.
type SerialTransport struct {
	device   string
	baudRate int

	mu   sync.Mutex
	port serial.Port
}

func NewSerialTransport(device string, baudRate int) *SerialTransport {
	if baudRate == 0 {
		baudRate = 19200
	}
	return &SerialTransport{device: device, baudRate: baudRate}
}

func (t *SerialTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		return nil
	}

	port, err := serial.Open(t.device, &serial.Mode{
		BaudRate: t.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	t.port = port
	return nil
}

func (t *SerialTransport) Write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return ErrNotConnected
	}

	if _, err := t.port.Write(data); err != nil {
		t.port.Close()
		t.port = nil
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

func (t *SerialTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}
