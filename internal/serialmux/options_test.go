package serialmux

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptions_Normalize_Defaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}
	if opts != want {
		t.Errorf("Normalize() = %+v, want %+v", opts, want)
	}
}

func TestPortOptions_Normalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"data bits too small", PortOptions{DataBits: 4}},
		{"data bits too large", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "mark"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.opts.Normalize(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPortOptions_Normalize_ParityAliases(t *testing.T) {
	for in, want := range map[string]string{"none": "N", " e ": "E", "Odd": "O", "n": "N"} {
		opts, err := PortOptions{Parity: in}.Normalize()
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		if opts.Parity != want {
			t.Errorf("parity %q normalized to %q, want %q", in, opts.Parity, want)
		}
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 9600, StopBits: 2, Parity: "E"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode: %v", err)
	}
	if mode.BaudRate != 9600 || mode.DataBits != 8 {
		t.Errorf("mode = %+v", mode)
	}
	if mode.StopBits != serial.TwoStopBits {
		t.Errorf("StopBits = %v, want TwoStopBits", mode.StopBits)
	}
	if mode.Parity != serial.EvenParity {
		t.Errorf("Parity = %v, want EvenParity", mode.Parity)
	}

	if _, err := (PortOptions{Parity: "x"}).SerialMode(); err == nil {
		t.Error("expected error for invalid parity")
	}
}

func TestNewRealSerialMux_InvalidPath(t *testing.T) {
	if _, err := NewRealSerialMux("/dev/does-not-exist-autopark", PortOptions{}); err == nil {
		t.Error("expected error opening a missing port")
	}
}
