package serialmux

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func readLine(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		if !ok {
			t.Fatal("subscriber channel closed")
		}
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
	}
	return ""
}

func TestSendCommand_AddsNewline(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	if err := mux.SendCommand("SCAN"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if err := mux.SendCommand("RESET\n"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if got, want := string(port.GetWrittenData()), "SCAN\nRESET\n"; got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
}

func TestSendCommand_WriteError(t *testing.T) {
	port := NewTestableSerialPort()
	port.WriteError = errors.New("unplugged")
	mux := NewSerialMux(port)

	if err := mux.SendCommand("SCAN"); err == nil {
		t.Fatal("expected write error")
	}
}

func TestInitialize_SendsStartSequence(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	if err := mux.Initialize(300); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	want := "ENABLE\nLASER 180 0.5\nVMAX 300\n"
	if got := string(port.GetWrittenData()); got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
}

func TestInitialize_ReportsFailingCommand(t *testing.T) {
	port := NewTestableSerialPort()
	port.WriteError = errors.New("unplugged")
	mux := NewSerialMux(port)

	err := mux.Initialize(300)
	if err == nil || !strings.Contains(err.Error(), `"ENABLE"`) {
		t.Fatalf("Initialize error = %v, want failure naming ENABLE", err)
	}
}

func TestMonitor_FansOutLines(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	t.Cleanup(func() { port.Close() })

	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.AddReadData([]byte("S 90.0 200.0\r\nEND\n"))

	for _, ch := range []chan string{a, b} {
		if got := readLine(t, ch); got != "S 90.0 200.0" {
			t.Errorf("first line = %q", got)
		}
		if got := readLine(t, ch); got != "END" {
			t.Errorf("second line = %q", got)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestMonitor_ReturnsReadError(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	t.Cleanup(func() { port.Close() })

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	readErr := errors.New("device gone")
	port.FailReads(readErr)

	select {
	case err := <-done:
		if !errors.Is(err, readErr) {
			t.Errorf("Monitor returned %v, want %v", err, readErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after read error")
	}
}

func TestClose_ClosesSubscribers(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	if err := mux.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel to be closed")
	}
	if !port.Closed {
		t.Error("expected port to be closed")
	}
}

func TestUnsubscribe(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	id, ch := mux.Subscribe()

	mux.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("expected channel closed after Unsubscribe")
	}
	// unknown and repeated IDs are ignored
	mux.Unsubscribe(id)
	mux.Unsubscribe("missing")
}

func TestMonitor_TracksBoardStatus(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	t.Cleanup(func() { port.Close() })
	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	if err := mux.SendCommand(CmdScan); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	port.AddReadData([]byte("S 90 200\nS 90.5 201\nEND\nS 90 199\nDONE 1\nERR laser timeout\n"))
	for i := 0; i < 6; i++ {
		readLine(t, ch)
	}

	st := mux.Status()
	if st.Sweeps != 1 || st.LastSweep != 2 {
		t.Errorf("Sweeps = %d, LastSweep = %d, want 1 and 2", st.Sweeps, st.LastSweep)
	}
	if st.Partial != 0 {
		t.Errorf("Partial = %d, want 0 after ERR", st.Partial)
	}
	if st.MoveDone == nil || !*st.MoveDone {
		t.Errorf("MoveDone = %v, want true", st.MoveDone)
	}
	if st.LastError != "ERR laser timeout" {
		t.Errorf("LastError = %q", st.LastError)
	}
	if st.LastCommand != CmdScan {
		t.Errorf("LastCommand = %q", st.LastCommand)
	}
	if st.Lines[EventTypeSample] != 3 || st.Lines[EventTypeScanEnd] != 1 {
		t.Errorf("Lines = %v", st.Lines)
	}

	// Snapshots do not alias the tracker.
	st.Lines[EventTypeSample] = 100
	if mux.Status().Lines[EventTypeSample] != 3 {
		t.Error("Status snapshot shares its map")
	}
}

func TestSubscribe_AfterClose(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	if err := mux.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, ch := mux.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Close")
	}
}
