package park

import (
	"context"
	"errors"
	"sync"

	"github.com/banshee-data/autopark/internal/scan"
)

type fakeCall struct {
	name        string
	left, right float64
	distance    float64
}

// fakeDriver replays canned sweeps and records every command.
type fakeDriver struct {
	mu          sync.Mutex
	sweeps      [][]scan.Sample
	calls       []fakeCall
	moveDone    bool
	scanErr     error
	velocityErr error
}

func newFakeDriver(sweeps ...[]scan.Sample) *fakeDriver {
	return &fakeDriver{sweeps: sweeps, moveDone: true}
}

func (f *fakeDriver) record(c fakeCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeDriver) Connect(context.Context) error {
	f.record(fakeCall{name: "connect"})
	return nil
}

func (f *fakeDriver) AcquireScan(context.Context) ([]scan.Sample, error) {
	f.record(fakeCall{name: "scan"})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	if len(f.sweeps) == 0 {
		return nil, errors.New("no more sweeps")
	}
	s := f.sweeps[0]
	if len(f.sweeps) > 1 {
		f.sweeps = f.sweeps[1:]
	}
	return s, nil
}

func (f *fakeDriver) CommandVelocities(left, right float64) error {
	f.record(fakeCall{name: "vel", left: left, right: right})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.velocityErr
}

func (f *fakeDriver) CommandRelativeMove(distance float64) error {
	f.record(fakeCall{name: "move", distance: distance})
	return nil
}

func (f *fakeDriver) IsMoveComplete() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.moveDone, nil
}

func (f *fakeDriver) ResetPoseOrigin() error {
	f.record(fakeCall{name: "reset"})
	return nil
}

func (f *fakeDriver) Close() error { return nil }

func (f *fakeDriver) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.name
	}
	return out
}

func (f *fakeDriver) lastCall() fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}
