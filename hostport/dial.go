package hostport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/tarm/serial"
)

const (
	DefaultBaud        = 115200
	DefaultReadTimeout = 100 * time.Millisecond
	DefaultDialTimeout = 5 * time.Second
)

// SerialConfig describes a serial device. The line is always 8N1.
type SerialConfig struct {
	Device string
	Baud   int
	// ReadTimeout bounds a single read so that the receive goroutine
	// notices Close. Zero selects DefaultReadTimeout.
	ReadTimeout time.Duration
}

// OpenSerial opens a serial device.
func OpenSerial(cfg SerialConfig) (io.ReadWriteCloser, error) {
	if cfg.Device == "" {
		return nil, errors.New("hostport: serial device is empty")
	}

	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	sp, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("hostport: open %s: %w", cfg.Device, err)
	}

	return &serialPort{Port: sp}, nil
}

// serialPort reports an expired read timeout as an empty read instead of io.EOF.
type serialPort struct {
	*serial.Port
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}

	return n, err
}

// Dial opens the stream named by link:
//
//   - tcp://host:port or socket://host:port: a TCP connection, e.g. to a
//     serial-over-IP bridge
//   - /dev/ttyUSB0 or file:///dev/ttyUSB0: a serial device at baud
func Dial(link string, baud int) (io.ReadWriteCloser, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("hostport: invalid link %q: %w", link, err)
	}

	switch u.Scheme {
	case "tcp", "socket":
		conn, err := net.DialTimeout("tcp", u.Host, DefaultDialTimeout)
		if err != nil {
			return nil, fmt.Errorf("hostport: dial %s: %w", u.Host, err)
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
			_ = tcp.SetKeepAlive(true)
			_ = tcp.SetKeepAlivePeriod(30 * time.Second)
		}

		return conn, nil

	case "file", "":
		return OpenSerial(SerialConfig{Device: u.Path, Baud: baud})

	default:
		return nil, fmt.Errorf("hostport: unsupported link scheme %q", u.Scheme)
	}
}
