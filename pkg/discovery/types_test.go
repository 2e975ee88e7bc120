package discovery

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		changes int
		ahead   int
		want    Status
	}{
		{0, 0, StatusClean},
		{1, 0, StatusLocalChanges},
		{7, 0, StatusLocalChanges},
		{0, 1, StatusUnpushed},
		{0, 12, StatusUnpushed},
		{1, 1, StatusLocalChangesAndUnpushed},
		{5, 3, StatusLocalChangesAndUnpushed},
	}
	for _, tt := range tests {
		if got := Classify(tt.changes, tt.ahead); got != tt.want {
			t.Errorf("Classify(%d, %d) = %v, want %v", tt.changes, tt.ahead, got, tt.want)
		}
	}
}

func TestRecord_Status(t *testing.T) {
	placeholder := Record{Path: "/src/a"}
	if placeholder.Status() != StatusUnknown {
		t.Errorf("placeholder Status() = %v, want unknown", placeholder.Status())
	}
	if !placeholder.Pending() {
		t.Error("placeholder should be pending")
	}

	// Counts on an unresolved record never leak into the classification.
	failed := Record{Path: "/src/b", Changes: 0, Ahead: 0, ProbeError: "timeout"}
	if failed.Status() != StatusUnknown {
		t.Errorf("failed Status() = %v, want unknown", failed.Status())
	}

	resolved := Record{Path: "/src/c", Resolved: true, Changes: 2}
	if resolved.Status() != StatusLocalChanges {
		t.Errorf("resolved Status() = %v, want local changes", resolved.Status())
	}
}

func TestStatus_Text(t *testing.T) {
	text, err := StatusLocalChangesAndUnpushed.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(text) != "local_changes_and_unpushed" {
		t.Errorf("MarshalText() = %q", text)
	}

	var s Status
	if err := s.UnmarshalText([]byte("unpushed")); err != nil || s != StatusUnpushed {
		t.Errorf("UnmarshalText(unpushed) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("dirty")); err == nil {
		t.Error("UnmarshalText(dirty) expected error")
	}
	if Status(42).String() != "unknown" {
		t.Errorf("out of range status = %q, want unknown", Status(42).String())
	}
}
