package gatt

import (
	"testing"

	"github.com/user/gattcl/wire/att"
)

func TestShortReadCompletesDirectly(t *testing.T) {
	var value AttributeValue
	var status Status

	e, bearer, connID, _ := newTestEngine()
	e.apps.byID[1].completion = func(connID uint16, op Operation, s Status, v AttributeValue, err error) {
		status, value = s, v
	}

	e.Read(connID, ReadByHandle, 0x0010, 0x0010, att.UUID{}, nil)
	resp, _ := att.EncodePacket(&att.ReadResponse{Value: []byte{0xDE, 0xAD, 0xBE, 0xEF}})
	e.HandleInbound(connID, resp[0], resp[1:])

	if status != StatusSuccess {
		t.Fatalf("expected StatusSuccess, got %s", status)
	}
	if string(value.Bytes) != "\xde\xad\xbe\xef" {
		t.Fatalf("unexpected value: %v", value.Bytes)
	}
	if len(bearer.sent) != 1 {
		t.Fatalf("short read must not issue a follow-up request, sent=%d", len(bearer.sent))
	}
}

func TestMalformedPDUCompletesInvalidPdu(t *testing.T) {
	var status Status
	e, _, connID, _ := newTestEngine()
	e.apps.byID[1].completion = func(connID uint16, op Operation, s Status, v AttributeValue, err error) {
		status = s
	}

	e.Discover(connID, DiscCharDescriptor, 0x0001, 0xFFFF, att.UUID{})
	// FindInformationResponse carries an invalid Format byte (neither 0x01
	// nor 0x02 UUID width).
	resp, _ := att.EncodePacket(&att.FindInformationResponse{Format: 0xFF, Data: []byte{0x01, 0x00}})
	e.HandleInbound(connID, resp[0], resp[1:])

	if status != StatusInvalidPdu {
		t.Fatalf("expected StatusInvalidPdu for an invalid FindInformationResponse format, got %s", status)
	}
}

func TestUnexpectedResponseOpcodeIsDropped(t *testing.T) {
	var called bool
	e, bearer, connID, _ := newTestEngine()
	e.apps.byID[1].completion = func(connID uint16, op Operation, s Status, v AttributeValue, err error) {
		called = true
	}

	e.Read(connID, ReadByHandle, 0x0010, 0x0010, att.UUID{}, nil)
	// Deliver a WriteResponse while a ReadRequest is outstanding.
	e.HandleInbound(connID, att.OpWriteResponse, nil)

	if called {
		t.Fatal("an unexpected response opcode must not complete the CLCB")
	}
	tcb := e.tcbFor(connID)
	if !tcb.tracker.HasPending() {
		t.Fatal("the real outstanding request must survive an unrelated mismatched response")
	}
	if len(bearer.sent) != 1 {
		t.Fatalf("dropping an unexpected response must not advance the queue, sent=%d", len(bearer.sent))
	}

	// The genuine response still completes the operation normally.
	resp, _ := att.EncodePacket(&att.ReadResponse{Value: []byte{0x01}})
	e.HandleInbound(connID, resp[0], resp[1:])
	if !called {
		t.Fatal("the matching response must still complete the CLCB")
	}
}

func TestOnlyOneOutstandingCommandPerBearer(t *testing.T) {
	e, bearer, connID, _ := newTestEngine()

	e.Read(connID, ReadByHandle, 0x0010, 0x0010, att.UUID{}, nil)
	e.Read(connID, ReadByHandle, 0x0020, 0x0020, att.UUID{}, nil)

	if len(bearer.sent) != 1 {
		t.Fatalf("a second operation must not send while one is outstanding, sent=%d", len(bearer.sent))
	}

	resp, _ := att.EncodePacket(&att.ReadResponse{Value: []byte{0x01}})
	e.HandleInbound(connID, resp[0], resp[1:])

	if len(bearer.sent) != 2 {
		t.Fatalf("the queued second operation must ship once the first completes, sent=%d", len(bearer.sent))
	}
}

func TestCompletionCallbackFiresExactlyOnce(t *testing.T) {
	var calls int
	e, _, connID, _ := newTestEngine()
	e.apps.byID[1].completion = func(connID uint16, op Operation, s Status, v AttributeValue, err error) {
		calls++
	}

	e.Read(connID, ReadByHandle, 0x0010, 0x0010, att.UUID{}, nil)
	resp, _ := att.EncodePacket(&att.ReadResponse{Value: []byte{0x01}})
	e.HandleInbound(connID, resp[0], resp[1:])
	// A duplicate/late delivery for the same (now-empty) queue must not
	// invoke the callback again.
	e.HandleInbound(connID, resp[0], resp[1:])

	if calls != 1 {
		t.Fatalf("completion callback fired %d times, want exactly 1", calls)
	}
}

func TestOversizeResponseCompletesError(t *testing.T) {
	var status Status
	e, _, connID, _ := newTestEngine()
	e.apps.byID[1].completion = func(connID uint16, op Operation, s Status, v AttributeValue, err error) {
		status = s
	}
	tcb := e.tcbFor(connID)
	tcb.payloadSize = 8

	e.Read(connID, ReadByHandle, 0x0010, 0x0010, att.UUID{}, nil)
	resp, _ := att.EncodePacket(&att.ReadResponse{Value: []byte{1, 2, 3, 4, 5, 6, 7, 8}})
	e.HandleInbound(connID, resp[0], resp[1:])

	if status != StatusError {
		t.Fatalf("expected StatusError for an oversize response, got %s", status)
	}
}

func TestShortErrorResponseSubstitutesUnknownReason(t *testing.T) {
	var reason uint8
	e, _, connID, _ := newTestEngine()
	e.apps.byID[1].completion = func(connID uint16, op Operation, s Status, v AttributeValue, err error) {
		if ce, ok := err.(*CompletionError); ok {
			reason = ce.Reason
		}
	}

	e.Read(connID, ReadByTypeSubtype, 0x0001, 0xFFFF, att.NewUUID16(0x2A00), nil)
	// A 1-byte ErrorResponse body, shorter than the 4 bytes needed to carry
	// request_opcode/handle/reason.
	e.HandleInbound(connID, att.OpErrorResponse, []byte{0x00})

	if reason != 0x7F {
		t.Fatalf("expected the substituted reason 0x7F, got 0x%02X", reason)
	}
}
