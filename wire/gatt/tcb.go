package gatt

import (
	"time"

	"github.com/user/gattcl/wire/att"
)

// DefaultMTU is the ATT default MTU in force until a successful MTU
// exchange.
const DefaultMTU = 23

// TCB is per-bearer transaction state (C3): the negotiated MTU, the
// command queue, the outstanding-indication counter, and the single
// response timer (modeled here as an att.RequestTracker polled by the
// engine rather than a background timer goroutine, since the engine is
// single-threaded cooperative per the concurrency model).
type TCB struct {
	Bearer Bearer

	payloadSize int
	queue       commandQueue
	tracker     *att.RequestTracker

	indCount    int
	indAckDue   time.Time
	indAckArmed bool
}

func newTCB(bearer Bearer, rspTimeout time.Duration) *TCB {
	return &TCB{
		Bearer:      bearer,
		payloadSize: DefaultMTU,
		tracker:     att.NewRequestTracker(rspTimeout),
	}
}

// PayloadSize returns the bearer's current effective ATT MTU.
func (t *TCB) PayloadSize() int { return t.payloadSize }
