package serialmux

import "testing"

func TestClassifyPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"S 90.5 1234.0", EventTypeSample},
		{"END", EventTypeScanEnd},
		{"DONE 1", EventTypeMoveStatus},
		{"ERR laser timeout", EventTypeError},
		{"", EventTypeUnknown},
		{"   ", EventTypeUnknown},
		{"HELLO", EventTypeUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyPayload(tt.payload); got != tt.want {
			t.Errorf("ClassifyPayload(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestParseSample(t *testing.T) {
	angle, dist, err := ParseSample("S 116.5 223.48")
	if err != nil {
		t.Fatalf("ParseSample: %v", err)
	}
	if angle != 116.5 || dist != 223.48 {
		t.Errorf("got (%v, %v), want (116.5, 223.48)", angle, dist)
	}

	for _, bad := range []string{"S 1", "S a 2", "S 1 b", "X 1 2", "S 1 2 3"} {
		if _, _, err := ParseSample(bad); err == nil {
			t.Errorf("ParseSample(%q) succeeded, want error", bad)
		}
	}
}

func TestParseMoveStatus(t *testing.T) {
	tests := []struct {
		payload string
		want    bool
		wantErr bool
	}{
		{"DONE 1", true, false},
		{"DONE 0", false, false},
		{"DONE 2", false, true},
		{"DONE", false, true},
		{"END", false, true},
	}
	for _, tt := range tests {
		got, err := ParseMoveStatus(tt.payload)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMoveStatus(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMoveStatus(%q) = %v, want %v", tt.payload, got, tt.want)
		}
	}
}

func TestCommandFormatting(t *testing.T) {
	if got := VelocityCommand(-140.5, -459.5); got != "VEL -140.500 -459.500" {
		t.Errorf("VelocityCommand = %q", got)
	}
	if got := MoveCommand(300); got != "MOVE 300.000" {
		t.Errorf("MoveCommand = %q", got)
	}
}

func TestKnownCommand(t *testing.T) {
	for _, cmd := range append(InitCommands(300), "SCAN", "DONE?", "RESET", VelocityCommand(0, 0), MoveCommand(-50)) {
		if !KnownCommand(cmd) {
			t.Errorf("KnownCommand(%q) = false", cmd)
		}
	}
	for _, cmd := range []string{"", "  ", "scan", "REBOOT now"} {
		if KnownCommand(cmd) {
			t.Errorf("KnownCommand(%q) = true", cmd)
		}
	}
}
