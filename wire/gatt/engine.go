package gatt

import (
	"fmt"
	"time"

	"github.com/user/gattcl/logger"
	"github.com/user/gattcl/wire/att"
)

const logPrefix = "gatt"

// Option configures an Engine at construction time. Following the
// paypal-gatt functional-options convention, each Option returns the
// previous value as another Option, so a caller can save and later undo a
// configuration change.
type Option func(*Engine) Option

// WithResponseTimeout sets how long the engine waits for a response to an
// outstanding request before CheckTimeouts terminates it with
// StatusTimeout. Default 30s, matching the teacher's own request tracker
// default.
func WithResponseTimeout(d time.Duration) Option {
	return func(e *Engine) Option {
		previous := e.rspTimeout
		e.rspTimeout = d
		return WithResponseTimeout(previous)
	}
}

// WithIndicationAckTimeout sets how long the engine waits for every
// subscribed app to acknowledge an indication before it forces the
// confirmation and resets ind_count itself.
func WithIndicationAckTimeout(d time.Duration) Option {
	return func(e *Engine) Option {
		previous := e.indAckTimeout
		e.indAckTimeout = d
		return WithIndicationAckTimeout(previous)
	}
}

// Engine is the GATT client protocol engine: one Registry (C8) shared by
// every connection, and one TCB (C3) per connected bearer.
type Engine struct {
	apps   *registry
	tcbs   map[uint8]*TCB
	notify notifySink

	nextTCBIndex uint8

	rspTimeout    time.Duration
	indAckTimeout time.Duration
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		apps:          newRegistry(),
		tcbs:          make(map[uint8]*TCB),
		rspTimeout:    30 * time.Second,
		indAckTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds an application to the registry and returns its identifier.
func (e *Engine) Register(discovery DiscoveryCallback, completion CompletionCallback) uint8 {
	return e.apps.register(discovery, completion)
}

// Connect attaches a bearer for one peer connection under the given app,
// returning the conn_id subsequent operations must use.
func (e *Engine) Connect(bearer Bearer, appID uint8) (uint16, error) {
	if e.apps.get(appID) == nil {
		return 0, fmt.Errorf("gatt: unknown app id %d", appID)
	}
	if e.nextTCBIndex == 0xFF {
		return 0, fmt.Errorf("gatt: bearer table exhausted")
	}
	e.nextTCBIndex++
	idx := e.nextTCBIndex
	e.tcbs[idx] = newTCB(bearer, e.rspTimeout)
	return connID(idx, appID), nil
}

// Disconnect tears down the bearer behind connID: every queued CLCB
// completes with StatusError and the queue/tracker are discarded.
func (e *Engine) Disconnect(connID uint16) {
	idx := tcbIndexFromConnID(connID)
	tcb, ok := e.tcbs[idx]
	if !ok {
		return
	}
	for _, cmd := range tcb.queue.purge() {
		e.completeCLCB(cmd.clcb, StatusError, 0, AttributeValue{})
	}
	tcb.tracker.CancelPending()
	delete(e.tcbs, idx)
}

func (e *Engine) tcbFor(connID uint16) *TCB {
	return e.tcbs[tcbIndexFromConnID(connID)]
}

// NotifyBearerReady re-invokes the sender loop after a bearer-congestion
// clears, per §4.2's "a later bearer-ready event reinvokes the sender
// loop." A congested head command is flipped back to Pending so the loop
// retries it.
func (e *Engine) NotifyBearerReady(connID uint16) {
	tcb := e.tcbFor(connID)
	if tcb == nil {
		return
	}
	if head := tcb.queue.head(); head != nil && head.state == commandOutstanding && head.pdu != nil {
		head.state = commandPending
	}
	e.runSenderLoop(tcb)
}

// CheckTimeouts polls for an expired response timer and, separately, an
// expired indication-ack window. The engine has no internal clock or
// goroutines (single-threaded cooperative model, §5); the caller's event
// loop is expected to invoke this periodically with the current time.
func (e *Engine) CheckTimeouts(connID uint16, now time.Time) {
	tcb := e.tcbFor(connID)
	if tcb == nil {
		return
	}
	if pending, expired := tcb.tracker.CheckTimeout(now); expired {
		logger.Warn(logPrefix, "response timeout: opcode 0x%02X handle 0x%04X", pending.Opcode, pending.Handle)
		head := tcb.queue.popHead()
		tcb.tracker.FailRequest()
		if head != nil {
			e.completeCLCB(head.clcb, StatusTimeout, 0, AttributeValue{})
		}
		e.runSenderLoop(tcb)
	}
	if tcb.indAckArmed && !now.Before(tcb.indAckDue) {
		e.forceIndicationConfirmation(tcb, connID)
	}
}

// completeCLCB finalizes a CLCB exactly once: it marks status/reason,
// invokes the owning app's completion callback, and frees the accumulator.
func (e *Engine) completeCLCB(c *CLCB, status Status, reason uint8, value AttributeValue) {
	if c == nil || c.completed {
		return
	}
	c.completed = true
	c.status = status
	c.reason = reason

	logger.Info(logPrefix, "operation %s/%s conn=0x%04X trace=%s completed status=%s", c.Operation, c.Subtype, c.ConnID, c.TraceID, status)

	app := e.apps.get(c.AppID)
	if app == nil || app.completion == nil {
		return
	}
	var err error
	if status != StatusSuccess {
		err = &CompletionError{Status: status, Reason: reason, Op: c.Operation}
	}
	app.completion(c.ConnID, c.Operation, status, value, err)
}

// emitDiscoveryResult invokes the owning app's discovery callback, if any.
func (e *Engine) emitDiscoveryResult(c *CLCB, result DiscoveryResult) {
	app := e.apps.get(c.AppID)
	if app == nil || app.discovery == nil {
		return
	}
	result.ConnID = c.ConnID
	result.Subtype = c.Subtype
	app.discovery(result)
}

// enqueue encodes pkt, appends it as a new pending command on tcb's queue,
// and runs the sender loop so it ships immediately if nothing is ahead of
// it.
func (e *Engine) enqueue(tcb *TCB, c *CLCB, opcode byte, reqHandle uint16, pkt interface{}) error {
	pdu, err := att.EncodePacket(pkt)
	if err != nil {
		return err
	}
	tcb.queue.push(&command{state: commandPending, opcode: opcode, reqHandle: reqHandle, pdu: pdu, clcb: c})
	e.runSenderLoop(tcb)
	return nil
}

// runSenderLoop implements §4.2: it reads (never pops) the queue head,
// hands its PDU to the bearer, and reacts to the bearer's verdict. It
// dequeues and completes WriteCmd/SignedWriteCmd entries immediately on
// send success, and otherwise arms the response tracker and returns,
// waiting for handleInbound or CheckTimeouts to advance the queue.
func (e *Engine) runSenderLoop(tcb *TCB) {
	for {
		head := tcb.queue.head()
		if head == nil {
			return
		}
		if head.state == commandOutstanding {
			return
		}

		status := tcb.Bearer.SendPDU(head.pdu)
		switch status {
		case BearerSuccess:
			head.pdu = nil
			head.state = commandOutstanding
			if head.opcode == att.OpWriteCommand || head.opcode == att.OpSignedWriteCommand {
				tcb.queue.popHead()
				e.completeCLCB(head.clcb, StatusSuccess, 0, AttributeValue{})
				continue
			}
			if err := tcb.tracker.StartRequest(head.opcode, head.reqHandle, time.Now()); err != nil {
				logger.Warn(logPrefix, "request tracker rejected StartRequest: %v", err)
			}
			return

		case BearerCongested:
			// Leave the bytes in place so NotifyBearerReady can retry the
			// same PDU once congestion clears, but stop advancing the
			// queue in the meantime.
			head.state = commandOutstanding
			return

		default: // BearerError
			tcb.queue.popHead()
			e.completeCLCB(head.clcb, StatusError, 0, AttributeValue{})
			continue
		}
	}
}
