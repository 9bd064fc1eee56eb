package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/charon-kb/charon/internal/domain"
)

// MaxLineSize bounds a single record.
const MaxLineSize = 1 << 20

// ErrDaemonNotRunning is returned by Dial when no socket exists.
var ErrDaemonNotRunning = errors.New("charon daemon not running")

// Conn is one end of a record stream. Reads and writes may happen on
// different goroutines; concurrent writes are serialized.
type Conn struct {
	conn    net.Conn
	scanner *bufio.Scanner

	writeMu sync.Mutex
}

// NewConn wraps an established connection.
func NewConn(conn net.Conn) *Conn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineSize)
	return &Conn{conn: conn, scanner: scanner}
}

// Dial connects to the daemon socket at path.
func Dial(ctx context.Context, path string) (*Conn, error) {
	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrDaemonNotRunning
		}
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return NewConn(conn), nil
}

// ReadLine returns the next non-empty line. io.EOF means the peer closed.
func (c *Conn) ReadLine() ([]byte, error) {
	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := c.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// ReadEvent reads and decodes the next record. A malformed record yields a
// *ParseError and leaves the connection usable.
func (c *Conn) ReadEvent() (domain.Event, error) {
	line, err := c.ReadLine()
	if err != nil {
		return domain.Event{}, err
	}
	return Decode(line)
}

// WriteEvent encodes ev and writes it as one line.
func (c *Conn) WriteEvent(ev domain.Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	return c.WriteLine(data)
}

// WriteLine writes data followed by a newline.
func (c *Conn) WriteLine(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	if _, err := c.conn.Write(buf); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
