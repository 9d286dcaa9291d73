package gatt

import (
	"time"

	"github.com/user/gattcl/logger"
	"github.com/user/gattcl/wire/att"
)

// EventKind distinguishes a server-initiated value report delivered to C7's
// notification callback.
type EventKind int

const (
	EventNotification EventKind = iota
	EventIndication
)

func (k EventKind) String() string {
	if k == EventIndication {
		return "Indication"
	}
	return "Notification"
}

// NotificationEvent is handed to every subscribed app on a Notif/Ind PDU.
type NotificationEvent struct {
	ConnID uint16
	Kind   EventKind
	Handle Handle
	Value  []byte
}

// NotificationCallback is invoked once per subscribed app per event; it
// carries no return value because acknowledgement of an Indication is a
// separate, explicit SendIndicationConfirmation call, not a return from
// this callback.
type NotificationCallback func(event NotificationEvent)

// notifySink is the per-engine registration of notification callbacks,
// kept alongside the completion/discovery registry but indexed separately
// since every subscribed app receives every event regardless of which app
// owns the originating CLCB, if any.
type notifySink struct {
	callbacks []NotificationCallback
}

func (s *notifySink) subscribe(cb NotificationCallback) {
	if cb != nil {
		s.callbacks = append(s.callbacks, cb)
	}
}

func (s *notifySink) count() int { return len(s.callbacks) }

func (s *notifySink) fanOut(event NotificationEvent) {
	for _, cb := range s.callbacks {
		cb(event)
	}
}

// Subscribe registers cb to receive every Notification/Indication event on
// every bearer, per §4.5's "fan out to every registered app" rule — the
// engine does not track per-characteristic subscriptions itself, that is
// the server's CCCD state, out of scope per §1.
func (e *Engine) Subscribe(cb NotificationCallback) {
	e.notify.subscribe(cb)
}

// handleNotification implements §4.5: it is reached from HandleInbound
// before the command queue is touched, since notify/indicate PDUs are
// bearer-initiated and carry no relationship to the queue head.
func (e *Engine) handleNotification(tcb *TCB, connID uint16, opcode byte, payload []byte) {
	if len(payload) < 2 {
		logger.Warn(logPrefix, "malformed notify/indicate PDU: len=%d", len(payload))
		return
	}
	pkt, err := att.DecodePacket(append([]byte{opcode}, payload...))
	if err != nil {
		logger.Warn(logPrefix, "notify/indicate decode error: %v", err)
		return
	}

	var handle Handle
	var value []byte
	indication := opcode == att.OpHandleValueIndication
	switch p := pkt.(type) {
	case *att.HandleValueNotification:
		handle, value = Handle(p.Handle), p.Value
	case *att.HandleValueIndication:
		handle, value = Handle(p.Handle), p.Value
	default:
		return
	}
	if len(value) > MaxAttributeLength {
		value = value[:MaxAttributeLength]
	}

	if !handle.Valid() {
		if indication {
			e.sendConfirmation(tcb)
		}
		return
	}

	if indication {
		if tcb.indCount != 0 {
			logger.Warn(logPrefix, "protocol violation: indication received with ind_count=%d still pending", tcb.indCount)
			tcb.indCount = 0
		}
		tcb.indCount = e.notify.count()
		if tcb.indCount > 0 {
			tcb.indAckArmed = true
			tcb.indAckDue = time.Now().Add(e.indAckTimeout)
		} else {
			e.sendConfirmation(tcb)
		}
	}

	kind := EventNotification
	if indication {
		kind = EventIndication
	}
	e.notify.fanOut(NotificationEvent{ConnID: connID, Kind: kind, Handle: handle, Value: value})
}

// SendIndicationConfirmation is the upward API an application calls once
// it has finished processing an indication. The engine has no per-app ack
// tracking (the distilled design collapses "wait for every app" into a
// single decrement), so each call decrements ind_count and the
// confirmation goes out the moment it reaches zero.
func (e *Engine) SendIndicationConfirmation(connID uint16) {
	tcb := e.tcbFor(connID)
	if tcb == nil || tcb.indCount == 0 {
		return
	}
	tcb.indCount--
	if tcb.indCount == 0 {
		e.sendConfirmation(tcb)
	}
}

// forceIndicationConfirmation is invoked by CheckTimeouts when the
// indication-ack window elapses before every app has confirmed: the engine
// sends the confirmation itself and resets ind_count, per §5's "Indication
// ack timeout is handled by emitting the confirmation forcibly."
func (e *Engine) forceIndicationConfirmation(tcb *TCB, connID uint16) {
	logger.Warn(logPrefix, "indication ack timeout on conn=0x%04X, forcing confirmation", connID)
	tcb.indCount = 0
	e.sendConfirmation(tcb)
}

// sendConfirmation disarms the ack timer and ships HandleValueConfirmation
// directly; confirmations bypass the command queue entirely since they
// carry no response of their own.
func (e *Engine) sendConfirmation(tcb *TCB) {
	tcb.indAckArmed = false
	pdu, err := att.EncodePacket(&att.HandleValueConfirmation{})
	if err != nil {
		logger.Error(logPrefix, "failed to encode HandleValueConfirmation: %v", err)
		return
	}
	tcb.Bearer.SendPDU(pdu)
}
