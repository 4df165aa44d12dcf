// Package serialmux owns the serial line to the robot controller board. It
// reads the board's line protocol, keeps a running BoardStatus of what the
// board has reported, and fans every line out to subscribers such as the
// serial driver and the /debug/ tail.
package serialmux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var ErrWriteFailed = errors.New("failed to write to serial port")

// subscriberBuffer holds a full 181-sample sweep plus its END line.
const subscriberBuffer = 1024

// SerialMuxInterface is what the driver and the debug server need from the
// board connection.
type SerialMuxInterface interface {
	// Subscribe returns an id and a channel receiving every board line.
	Subscribe() (string, chan string)
	// Unsubscribe closes and forgets the channel for id.
	Unsubscribe(string)
	// SendCommand writes one command line to the board.
	SendCommand(string) error
	// Monitor reads board lines until ctx is done or the port fails.
	Monitor(context.Context) error
	// Close closes all subscribed channels and the port.
	Close() error

	// Initialize enables the motors and the range-finder.
	Initialize(maxVelocity float64) error
	// Status reports what the board has said so far.
	Status() BoardStatus

	// AttachAdminRoutes mounts the serial console under /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// SerialMux multiplexes one board port among many line subscribers.
type SerialMux[T SerialPorter] struct {
	port    T
	writeMu sync.Mutex
	closed  atomic.Bool
	status  statusTracker

	subMu       sync.Mutex
	subscribers map[string]chan string
}

var _ SerialMuxInterface = (*SerialMux[SerialPorter])(nil)

// NewSerialMux creates a SerialMux instance backed by the given port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string, subscriberBuffer)
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed.Load() {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Initialize sends the start-up sequence, naming the command that failed.
func (s *SerialMux[T]) Initialize(maxVelocity float64) error {
	for _, command := range InitCommands(maxVelocity) {
		if err := s.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}
	return nil
}

// SendCommand writes command to the board, terminating it with a newline.
func (s *SerialMux[T]) SendCommand(command string) error {
	line := strings.TrimRight(command, "\r\n") + "\n"
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	n, err := io.WriteString(s.port, line)
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	s.status.sent(strings.TrimSpace(line))
	return nil
}

func (s *SerialMux[T]) Status() BoardStatus {
	return s.status.snapshot()
}

// Monitor reads board lines, updates Status and hands each line to every
// subscriber. A subscriber whose buffer is full misses the line.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	// Scanner.Scan blocks on the port, so it cannot select on ctx itself.
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.port)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err := <-readErr; err != nil {
					return err
				}
				return io.EOF
			}
			if s.closed.Load() {
				return nil
			}
			s.dispatch(strings.TrimRight(line, "\r"))
		}
	}
}

func (s *SerialMux[T]) dispatch(line string) {
	s.status.observe(line)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.closed.Store(true)

	s.subMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subMu.Unlock()
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, s)
}
