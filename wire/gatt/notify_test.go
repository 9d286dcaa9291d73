package gatt

import (
	"testing"
	"time"

	"github.com/user/gattcl/wire/att"
)

func TestNotificationFansOutWithoutConfirmation(t *testing.T) {
	var events []NotificationEvent
	e, bearer, connID, _ := newTestEngine()
	e.Subscribe(func(ev NotificationEvent) { events = append(events, ev) })

	notif, _ := att.EncodePacket(&att.HandleValueNotification{Handle: 0x0050, Value: []byte{0x01, 0x02}})
	e.HandleInbound(connID, notif[0], notif[1:])

	if len(events) != 1 || events[0].Kind != EventNotification || events[0].Handle != 0x0050 {
		t.Fatalf("unexpected notification event: %+v", events)
	}
	for _, pdu := range bearer.sent {
		if pdu[0] == att.OpHandleValueConfirmation {
			t.Fatal("a Notification must never be confirmed")
		}
	}
}

func TestIndicationWithNoSubscribersAutoConfirms(t *testing.T) {
	e, bearer, connID, _ := newTestEngine()

	ind, _ := att.EncodePacket(&att.HandleValueIndication{Handle: 0x0050, Value: []byte{0x01}})
	e.HandleInbound(connID, ind[0], ind[1:])

	if len(bearer.sent) != 1 || bearer.sent[0][0] != att.OpHandleValueConfirmation {
		t.Fatalf("expected an immediate confirmation with zero subscribers, got %v", bearer.sent)
	}
}

func TestIndicationAckTimeoutForcesConfirmation(t *testing.T) {
	e := NewEngine(WithIndicationAckTimeout(10 * time.Millisecond))
	bearer := &fakeBearer{}
	appID := e.Register(nil, nil)
	connID, _ := e.Connect(bearer, appID)
	e.Subscribe(func(ev NotificationEvent) {})

	ind, _ := att.EncodePacket(&att.HandleValueIndication{Handle: 0x0050, Value: []byte{0x01}})
	e.HandleInbound(connID, ind[0], ind[1:])

	tcb := e.tcbFor(connID)
	if tcb.indCount != 1 || len(bearer.sent) != 0 {
		t.Fatalf("expected the confirmation to be deferred pending ack, indCount=%d sent=%d", tcb.indCount, len(bearer.sent))
	}

	e.CheckTimeouts(connID, time.Now().Add(time.Second))

	if tcb.indCount != 0 {
		t.Fatalf("indCount = %d after forced confirmation, want 0", tcb.indCount)
	}
	if len(bearer.sent) != 1 || bearer.sent[0][0] != att.OpHandleValueConfirmation {
		t.Fatalf("expected a forced confirmation after the ack timeout, got %v", bearer.sent)
	}
}

func TestIndicationConfirmedExactlyOnce(t *testing.T) {
	e, bearer, connID, _ := newTestEngine()
	e.Subscribe(func(ev NotificationEvent) {})

	ind, _ := att.EncodePacket(&att.HandleValueIndication{Handle: 0x0050, Value: []byte{0x01}})
	e.HandleInbound(connID, ind[0], ind[1:])

	e.SendIndicationConfirmation(connID)
	e.SendIndicationConfirmation(connID) // a second call after ind_count reaches 0 must be a no-op

	confirmations := 0
	for _, pdu := range bearer.sent {
		if pdu[0] == att.OpHandleValueConfirmation {
			confirmations++
		}
	}
	if confirmations != 1 {
		t.Fatalf("expected exactly one HandleValueConfirmation, got %d", confirmations)
	}
}
