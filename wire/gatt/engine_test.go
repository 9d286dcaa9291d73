package gatt

import (
	"testing"
	"time"

	"github.com/user/gattcl/wire/att"
)

// fakeBearer is a minimal in-memory Bearer used to drive the engine in
// tests without a real L2CAP transport. Every PDU handed to SendPDU is
// appended to sent for inspection; congested/error behavior is injected via
// the nextStatus field.
type fakeBearer struct {
	sent       [][]byte
	nextStatus BearerStatus
	mtu        int
}

func (b *fakeBearer) SendPDU(pdu []byte) BearerStatus {
	b.sent = append(b.sent, append([]byte{}, pdu...))
	if b.nextStatus == BearerCongested || b.nextStatus == BearerError {
		status := b.nextStatus
		b.nextStatus = BearerSuccess
		return status
	}
	return BearerSuccess
}

func (b *fakeBearer) SetFixedChannelMTU(mtu int) { b.mtu = mtu }

// lastSent returns the most recently sent PDU, or nil.
func (b *fakeBearer) lastSent() []byte {
	if len(b.sent) == 0 {
		return nil
	}
	return b.sent[len(b.sent)-1]
}

func newTestEngine() (*Engine, *fakeBearer, uint16, uint8) {
	e := NewEngine(WithResponseTimeout(50 * time.Millisecond))
	bearer := &fakeBearer{}
	appID := e.Register(nil, nil)
	connID, err := e.Connect(bearer, appID)
	if err != nil {
		panic(err)
	}
	return e, bearer, connID, appID
}

func TestConnectDisconnect(t *testing.T) {
	e, _, connID, _ := newTestEngine()
	if e.tcbFor(connID) == nil {
		t.Fatal("expected a TCB after Connect")
	}
	e.Disconnect(connID)
	if e.tcbFor(connID) != nil {
		t.Fatal("expected no TCB after Disconnect")
	}
}

func TestDisconnectCompletesQueuedCLCBs(t *testing.T) {
	var gotStatus Status
	var calls int
	e := NewEngine()
	bearer := &fakeBearer{nextStatus: BearerCongested}
	appID := e.Register(nil, func(connID uint16, op Operation, status Status, value AttributeValue, err error) {
		calls++
		gotStatus = status
	})
	connID, _ := e.Connect(bearer, appID)

	e.Discover(connID, DiscSrvcAll, HandleMin, HandleMax, att.UUID{})
	e.Disconnect(connID)

	if calls != 1 {
		t.Fatalf("expected exactly one completion callback, got %d", calls)
	}
	if gotStatus != StatusError {
		t.Fatalf("expected StatusError on disconnect teardown, got %s", gotStatus)
	}
}

func TestConfigMTUUpdatesPayloadSize(t *testing.T) {
	e, bearer, connID, _ := newTestEngine()
	e.ConfigMTU(connID, 100)

	pdu := bearer.lastSent()
	if pdu == nil || pdu[0] != att.OpExchangeMTURequest {
		t.Fatalf("expected an ExchangeMTURequest PDU, got %v", pdu)
	}

	resp, _ := att.EncodePacket(&att.ExchangeMTUResponse{ServerRxMTU: 100})
	e.HandleInbound(connID, resp[0], resp[1:])

	tcb := e.tcbFor(connID)
	if tcb.PayloadSize() != 100 {
		t.Fatalf("PayloadSize() = %d, want 100", tcb.PayloadSize())
	}
	if bearer.mtu != 100 {
		t.Fatalf("bearer.SetFixedChannelMTU got %d, want 100", bearer.mtu)
	}
}

func TestCheckTimeoutsCompletesWithTimeout(t *testing.T) {
	var gotStatus Status
	e := NewEngine(WithResponseTimeout(10 * time.Millisecond))
	bearer := &fakeBearer{}
	appID := e.Register(nil, func(connID uint16, op Operation, status Status, value AttributeValue, err error) {
		gotStatus = status
	})
	connID, _ := e.Connect(bearer, appID)

	e.Read(connID, ReadByHandle, 0x0010, 0x0010, att.UUID{}, nil)
	e.CheckTimeouts(connID, time.Now().Add(time.Second))

	if gotStatus != StatusTimeout {
		t.Fatalf("expected StatusTimeout, got %s", gotStatus)
	}
}
