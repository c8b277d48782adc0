package cmd

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/pterm/pterm"
)

// outBuf collects everything pterm prints during a test.
var outBuf bytes.Buffer

func setupStdoutCapture(t *testing.T) {
	t.Helper()
	outBuf.Reset()
	pterm.SetDefaultOutput(&outBuf)
	pterm.DisableStyling()
	t.Cleanup(func() {
		pterm.SetDefaultOutput(os.Stdout)
		pterm.EnableStyling()
	})
}

// captureJSON swaps os.Stdout for a pipe while fn runs and returns what was written.
func captureJSON(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	t.Cleanup(func() {
		os.Stdout = oldStdout
	})

	runErr := fn()
	w.Close()
	os.Stdout = oldStdout

	var stdoutBuf bytes.Buffer
	_, _ = io.Copy(&stdoutBuf, r)
	return stdoutBuf.String(), runErr
}
