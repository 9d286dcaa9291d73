package att

import (
	"fmt"
	"sync"
	"time"
)

// RequestTracker records the single ATT request a bearer may have
// outstanding at any time and matches it against the inbound response.
// ATT allows only one request per bearer to be in flight at once; the
// driver consults this before sending the next one in its queue.
//
// Unlike a blocking RPC client, nothing here parks a goroutine on the
// response: the engine is driven synchronously from its event loop, so
// timeout is a poll the loop performs itself (CheckTimeout), not a timer
// goroutine racing the response.
type RequestTracker struct {
	mu             sync.Mutex
	pending        *PendingRequest
	defaultTimeout time.Duration
}

// PendingRequest is the single outstanding ATT request on a bearer.
type PendingRequest struct {
	Opcode  byte
	Handle  uint16
	SentAt  time.Time
	Timeout time.Duration
}

func NewRequestTracker(timeout time.Duration) *RequestTracker {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RequestTracker{defaultTimeout: timeout}
}

// StartRequest records opcode/handle as the bearer's outstanding request.
// Returns an error if one is already pending, since ATT never allows two.
func (rt *RequestTracker) StartRequest(opcode byte, handle uint16, sentAt time.Time) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.pending != nil {
		return fmt.Errorf("att: request already pending (opcode 0x%02X on handle 0x%04X)",
			rt.pending.Opcode, rt.pending.Handle)
	}

	rt.pending = &PendingRequest{
		Opcode:  opcode,
		Handle:  handle,
		SentAt:  sentAt,
		Timeout: rt.defaultTimeout,
	}
	return nil
}

// CompleteRequest clears the pending request after a matching response
// arrives. responseOpcode must be the expected response for the pending
// request's opcode, or an Error Response.
func (rt *RequestTracker) CompleteRequest(responseOpcode byte) (*PendingRequest, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.pending == nil {
		return nil, fmt.Errorf("att: no pending request for response opcode 0x%02X", responseOpcode)
	}

	expected := GetResponseOpcode(rt.pending.Opcode)
	if responseOpcode != expected && responseOpcode != OpErrorResponse {
		return nil, fmt.Errorf("att: unexpected response opcode 0x%02X for request 0x%02X (expected 0x%02X)",
			responseOpcode, rt.pending.Opcode, expected)
	}

	completed := rt.pending
	rt.pending = nil
	return completed, nil
}

// FailRequest clears the pending request without a matching response,
// for connection loss or a protocol violation detected elsewhere.
func (rt *RequestTracker) FailRequest() (*PendingRequest, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.pending == nil {
		return nil, fmt.Errorf("att: no pending request to fail")
	}
	failed := rt.pending
	rt.pending = nil
	return failed, nil
}

// CheckTimeout reports whether the pending request (if any) has exceeded
// its timeout as of now. It does not clear the request; the caller decides
// whether to fail it.
func (rt *RequestTracker) CheckTimeout(now time.Time) (*PendingRequest, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.pending == nil {
		return nil, false
	}
	if now.Sub(rt.pending.SentAt) >= rt.pending.Timeout {
		return rt.pending, true
	}
	return rt.pending, false
}

func (rt *RequestTracker) HasPending() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.pending != nil
}

func (rt *RequestTracker) GetPendingInfo() (opcode byte, handle uint16, duration time.Duration, hasPending bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.pending == nil {
		return 0, 0, 0, false
	}
	return rt.pending.Opcode, rt.pending.Handle, time.Since(rt.pending.SentAt), true
}

// CancelPending discards any pending request, for disconnection.
func (rt *RequestTracker) CancelPending() *PendingRequest {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	cancelled := rt.pending
	rt.pending = nil
	return cancelled
}
