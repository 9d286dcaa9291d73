package gatt

import (
	"github.com/google/uuid"

	"github.com/user/gattcl/wire/att"
)

// pendingInclService holds a partially-discovered included-service record
// (incl_start, incl_end) while the client waits on a separate Read to
// resolve its 128-bit service UUID. nextStart is the discovery window's own
// resumption handle, which is not incl_end+1 — the included service's end
// handle bounds the included service, not the outer discovery window.
type pendingInclService struct {
	startHandle Handle
	endHandle   Handle
	nextStart   Handle
}

// DiscoveryResult is delivered to an app's discovery callback once per
// discovered record (service, included service, characteristic, or
// descriptor, depending on the originating CLCB's subtype).
type DiscoveryResult struct {
	ConnID      uint16
	Subtype     Subtype
	Handle      Handle
	EndHandle   Handle
	UUID        att.UUID
	Properties  byte
	ValueHandle Handle
}

// CLCB is the per-operation Client Control Block (C4): everything needed
// to drive one discover/read/write/configure-MTU operation across its
// round-trips and finalize it exactly once.
type CLCB struct {
	TraceID string

	Operation Operation
	Subtype   Subtype

	AppID  uint8
	ConnID uint16

	StartHandle Handle
	EndHandle   Handle
	UUID        att.UUID

	// cursor is "bytes accumulated so far" during a long read, or the
	// size of the chunk currently awaiting PrepareWrite echo verification
	// during a long write (the spec's "remember to_send in cursor").
	cursor      int
	accumulator []byte

	writeValue      []byte
	writeHandle     Handle
	writeBaseOffset int // caller-supplied base offset for WritePrepare; 0 for a plain long Write
	writeProgress   int // bytes of writeValue already committed via PrepareWrite
	writeSigned     bool

	readHandles []uint16 // ReadMultiple operand

	requestedMTU int // client's ClientRxMTU for an OpConfigureMTU operation

	promotedToReadByHandle bool
	firstLongReadFlag      bool
	readReqCurrentMTU      int

	pendingInclSrvRead *pendingInclService

	status    Status
	reason    uint8
	completed bool

	retryCount int
}

func newCLCB(op Operation, subtype Subtype, appID uint8, connID uint16) *CLCB {
	return &CLCB{
		TraceID:   uuid.NewString(),
		Operation: op,
		Subtype:   subtype,
		AppID:     appID,
		ConnID:    connID,
		status:    StatusSuccess,
	}
}

func (c *CLCB) ensureAccumulator() {
	if c.accumulator == nil {
		c.accumulator = make([]byte, 0, MaxAttributeLength)
	}
}

func (c *CLCB) appendAccumulator(b []byte) {
	c.ensureAccumulator()
	room := MaxAttributeLength - len(c.accumulator)
	if room <= 0 {
		return
	}
	if len(b) > room {
		b = b[:room]
	}
	c.accumulator = append(c.accumulator, b...)
	c.cursor = len(c.accumulator)
}
