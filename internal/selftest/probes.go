package selftest

import (
	"net/http"

	"github.com/casetrack/cli/internal/uscis"
)

// Probe is one request of the self-test battery.
type Probe struct {
	Name    string
	Receipt string
	// Expect is the status the probe is designed to provoke.
	Expect int
	// Prepare, when set, runs right before the request.
	Prepare func(uscis.ProbeHooks)
}

const probeReceipt = "IOE1234567890"

// DefaultProbes exercises every classified response: one success, two
// malformed receipts, two unknown receipts, one request with an invalidated
// token and one with the service forced unavailable.
var DefaultProbes = []Probe{
	{Name: "valid receipt", Receipt: probeReceipt, Expect: http.StatusOK},
	{Name: "truncated receipt", Receipt: "IOE123456", Expect: http.StatusBadRequest},
	{Name: "short receipt", Receipt: "IOE123456789", Expect: http.StatusBadRequest},
	{Name: "unknown receipt", Receipt: "IOE0000000000", Expect: http.StatusNotFound},
	{Name: "unknown receipt", Receipt: "IOE9999999999", Expect: http.StatusNotFound},
	{
		Name:    "invalidated token",
		Receipt: probeReceipt,
		Expect:  http.StatusUnauthorized,
		Prepare: func(h uscis.ProbeHooks) { h.InvalidateToken() },
	},
	{
		Name:    "service unavailable",
		Receipt: probeReceipt,
		Expect:  http.StatusServiceUnavailable,
		Prepare: func(h uscis.ProbeHooks) { h.InjectFault(http.StatusServiceUnavailable) },
	},
}
