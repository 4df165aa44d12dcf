package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/banshee-data/autopark/internal/monitoring"
	"github.com/banshee-data/autopark/internal/scan"
	"github.com/banshee-data/autopark/internal/serialmux"
)

// SerialOptions tune the serial driver.
type SerialOptions struct {
	// MaxVelocity is sent to the board at Connect.
	MaxVelocity float64
	// ScanTimeout bounds the wait for a full sweep.
	ScanTimeout time.Duration
	// ReplyTimeout bounds the wait for a move status reply.
	ReplyTimeout time.Duration
}

// DefaultSerialOptions returns the options used by cmd/autopark.
func DefaultSerialOptions() SerialOptions {
	return SerialOptions{
		MaxVelocity:  300,
		ScanTimeout:  2 * time.Second,
		ReplyTimeout: time.Second,
	}
}

// SerialDriver talks to the controller board over the serialmux line
// protocol. Lines are consumed by a single listener goroutine; completed
// sweeps are handed to AcquireScan under mu.
type SerialDriver struct {
	mux  serialmux.SerialMuxInterface
	opts SerialOptions

	cancel      context.CancelFunc
	subID       string
	monitorDone chan struct{}
	listenDone  chan struct{}
	monitorErr  error

	mu       sync.Mutex
	latest   []scan.Sample
	scanSeq  uint64
	ready    chan struct{}
	status   chan bool
	boardErr chan string
}

var _ Driver = (*SerialDriver)(nil)

// NewSerialDriver returns a driver over mux. Connect starts monitoring.
func NewSerialDriver(mux serialmux.SerialMuxInterface, opts SerialOptions) *SerialDriver {
	def := DefaultSerialOptions()
	if opts.MaxVelocity <= 0 {
		opts.MaxVelocity = def.MaxVelocity
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = def.ScanTimeout
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = def.ReplyTimeout
	}
	return &SerialDriver{
		mux:      mux,
		opts:     opts,
		ready:    make(chan struct{}, 1),
		status:   make(chan bool, 1),
		boardErr: make(chan string, 1),
	}
}

// Connect subscribes to the line stream, starts the monitor and sends the
// start-up sequence.
func (d *SerialDriver) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.monitorDone = make(chan struct{})
	d.listenDone = make(chan struct{})

	id, lines := d.mux.Subscribe()
	d.subID = id
	go d.listen(lines)
	go func() {
		defer close(d.monitorDone)
		err := d.mux.Monitor(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("serial monitor stopped: %v", err)
		}
		d.mu.Lock()
		d.monitorErr = err
		d.mu.Unlock()
	}()

	if err := d.mux.Initialize(d.opts.MaxVelocity); err != nil {
		return fmt.Errorf("initialize robot: %w", err)
	}
	return nil
}

// listen assembles sweeps from sample lines and forwards move replies.
func (d *SerialDriver) listen(lines chan string) {
	defer close(d.listenDone)
	var pending []scan.Sample
	for line := range lines {
		switch serialmux.ClassifyPayload(line) {
		case serialmux.EventTypeSample:
			angle, dist, err := serialmux.ParseSample(line)
			if err != nil {
				monitoring.Debugf("dropping %v", err)
				continue
			}
			pending = append(pending, scan.Sample{Angle: angle, Distance: dist})
		case serialmux.EventTypeScanEnd:
			d.mu.Lock()
			d.latest = pending
			d.scanSeq++
			d.mu.Unlock()
			pending = nil
			notify(d.ready, struct{}{})
		case serialmux.EventTypeMoveStatus:
			done, err := serialmux.ParseMoveStatus(line)
			if err != nil {
				monitoring.Debugf("dropping %v", err)
				continue
			}
			replace(d.status, done)
		case serialmux.EventTypeError:
			monitoring.Logf("board error: %s", line)
			replace(d.boardErr, line)
		}
	}
}

func notify[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// replace keeps only the newest value in a one-slot channel.
func replace[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func drain[T any](ch chan T) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func (d *SerialDriver) connected() error {
	if d.cancel == nil {
		return ErrNotConnected
	}
	select {
	case <-d.monitorDone:
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.monitorErr != nil {
			return fmt.Errorf("%w: %v", ErrSensorUnavailable, d.monitorErr)
		}
		return ErrSensorUnavailable
	default:
		return nil
	}
}

// AcquireScan requests a sweep and waits for its END line.
func (d *SerialDriver) AcquireScan(ctx context.Context) ([]scan.Sample, error) {
	if err := d.connected(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	seq := d.scanSeq
	d.mu.Unlock()
	drain(d.boardErr)

	if err := d.mux.SendCommand(serialmux.CmdScan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSensorUnavailable, err)
	}

	timer := time.NewTimer(d.opts.ScanTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-d.monitorDone:
			return nil, ErrSensorUnavailable
		case <-timer.C:
			if partial := d.mux.Status().Partial; partial > 0 {
				return nil, fmt.Errorf("%w: sweep incomplete after %v (%d samples)", ErrSensorUnavailable, d.opts.ScanTimeout, partial)
			}
			return nil, fmt.Errorf("%w: no sweep within %v", ErrSensorUnavailable, d.opts.ScanTimeout)
		case line := <-d.boardErr:
			return nil, fmt.Errorf("%w: %s", ErrSensorUnavailable, line)
		case <-d.ready:
			d.mu.Lock()
			if d.scanSeq == seq {
				d.mu.Unlock()
				continue
			}
			out := make([]scan.Sample, len(d.latest))
			copy(out, d.latest)
			d.mu.Unlock()
			return out, nil
		}
	}
}

func (d *SerialDriver) CommandVelocities(left, right float64) error {
	if err := d.connected(); err != nil {
		return err
	}
	return d.mux.SendCommand(serialmux.VelocityCommand(left, right))
}

func (d *SerialDriver) CommandRelativeMove(distance float64) error {
	if err := d.connected(); err != nil {
		return err
	}
	return d.mux.SendCommand(serialmux.MoveCommand(distance))
}

// IsMoveComplete asks the board for the status of the last relative move.
// A reply lost within ReplyTimeout reads as still moving, leaving the
// caller's move timeout to decide.
func (d *SerialDriver) IsMoveComplete() (bool, error) {
	if err := d.connected(); err != nil {
		return false, err
	}
	drain(d.status)
	if err := d.mux.SendCommand(serialmux.CmdMoveDone); err != nil {
		return false, err
	}
	timer := time.NewTimer(d.opts.ReplyTimeout)
	defer timer.Stop()
	select {
	case done := <-d.status:
		return done, nil
	case <-d.monitorDone:
		return false, ErrSensorUnavailable
	case <-timer.C:
		return false, nil
	}
}

func (d *SerialDriver) ResetPoseOrigin() error {
	if err := d.connected(); err != nil {
		return err
	}
	return d.mux.SendCommand(serialmux.CmdResetPose)
}

// Close stops the wheels, stops monitoring and closes the port.
func (d *SerialDriver) Close() error {
	if d.cancel == nil {
		return d.mux.Close()
	}
	err := d.mux.SendCommand(serialmux.VelocityCommand(0, 0))
	d.cancel()
	d.mux.Unsubscribe(d.subID)
	err = multierr.Append(err, d.mux.Close())
	<-d.listenDone
	return err
}
