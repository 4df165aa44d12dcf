package serialmux

import (
	"maps"
	"sync"
)

// BoardStatus summarises the board traffic seen by a SerialMux.
type BoardStatus struct {
	// Lines counts received lines by event type.
	Lines map[string]int `json:"lines"`
	// Sweeps is the number of completed sweeps; LastSweep is the sample
	// count of the most recent one.
	Sweeps    int `json:"sweeps"`
	LastSweep int `json:"last_sweep_samples"`
	// Partial counts samples of a sweep whose END has not arrived.
	Partial int `json:"partial_samples"`

	MoveDone    *bool  `json:"move_done,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	LastCommand string `json:"last_command,omitempty"`
}

type statusTracker struct {
	mu sync.Mutex
	st BoardStatus
}

func (t *statusTracker) observe(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kind := ClassifyPayload(line)
	if t.st.Lines == nil {
		t.st.Lines = make(map[string]int)
	}
	t.st.Lines[kind]++

	switch kind {
	case EventTypeSample:
		t.st.Partial++
	case EventTypeScanEnd:
		t.st.Sweeps++
		t.st.LastSweep = t.st.Partial
		t.st.Partial = 0
	case EventTypeMoveStatus:
		if done, err := ParseMoveStatus(line); err == nil {
			t.st.MoveDone = &done
		}
	case EventTypeError:
		t.st.LastError = line
		t.st.Partial = 0
	}
}

func (t *statusTracker) sent(command string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.st.LastCommand = command
	if command == CmdScan {
		t.st.Partial = 0
	}
}

func (t *statusTracker) snapshot() BoardStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.st
	out.Lines = maps.Clone(t.st.Lines)
	if t.st.MoveDone != nil {
		done := *t.st.MoveDone
		out.MoveDone = &done
	}
	return out
}
