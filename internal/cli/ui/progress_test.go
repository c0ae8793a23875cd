package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSpinnerStartStop(t *testing.T) {
	var buf bytes.Buffer
	spinner := NewSpinner(&buf, SpinnerOptions{
		Message:  "Indexing",
		NoColor:  true,
		Interval: 10 * time.Millisecond,
	})

	spinner.Start()
	// a second Start is a no-op
	spinner.Start()
	time.Sleep(50 * time.Millisecond)
	spinner.Stop()

	output := buf.String()
	if !strings.Contains(output, "Indexing") {
		t.Errorf("Expected spinner to show message, got: %q", output)
	}
	if !strings.HasSuffix(output, "\r\033[K") {
		t.Error("Expected spinner to clear the line on stop")
	}

	// Stop on a stopped spinner is a no-op
	before := buf.Len()
	spinner.Stop()
	if buf.Len() != before {
		t.Error("Expected no output from a second Stop")
	}
}

func TestSpinnerUpdateMessage(t *testing.T) {
	var buf bytes.Buffer
	spinner := NewSpinner(&buf, SpinnerOptions{Message: "Locating", NoColor: true, Interval: 5 * time.Millisecond})

	spinner.Start()
	spinner.UpdateMessage("Parsing")
	time.Sleep(40 * time.Millisecond)
	spinner.Stop()

	if !strings.Contains(buf.String(), "Parsing") {
		t.Errorf("Expected updated message, got: %q", buf.String())
	}
}

func TestSpinnerSuccessAndError(t *testing.T) {
	var buf bytes.Buffer
	spinner := NewSpinner(&buf, SpinnerOptions{NoColor: true})
	spinner.Start()
	spinner.Success("Indexed")
	if !strings.HasSuffix(buf.String(), "✓ Indexed\n") {
		t.Errorf("Unexpected success output %q", buf.String())
	}

	buf.Reset()
	spinner = NewSpinner(&buf, SpinnerOptions{NoColor: true})
	spinner.Start()
	spinner.Error("Index failed")
	if !strings.HasSuffix(buf.String(), "❌ Index failed\n") {
		t.Errorf("Unexpected error output %q", buf.String())
	}
}

func TestWithSpinner(t *testing.T) {
	var buf bytes.Buffer
	if err := WithSpinner(&buf, "Building index", true, func() error { return nil }); err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	if !strings.Contains(buf.String(), "✓ Building index") {
		t.Errorf("Expected success line, got %q", buf.String())
	}

	buf.Reset()
	boom := errors.New("boom")
	if err := WithSpinner(&buf, "Building index", true, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Expected the function error, got %v", err)
	}
	if !strings.Contains(buf.String(), "❌ Building index failed") {
		t.Errorf("Expected failure line, got %q", buf.String())
	}
}
