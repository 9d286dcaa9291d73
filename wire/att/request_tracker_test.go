package att

import (
	"testing"
	"time"
)

func TestRequestTracker_SingleRequest(t *testing.T) {
	tracker := NewRequestTracker(100 * time.Millisecond)
	sentAt := time.Now()

	if err := tracker.StartRequest(OpReadRequest, 0x0010, sentAt); err != nil {
		t.Fatalf("StartRequest failed: %v", err)
	}

	if !tracker.HasPending() {
		t.Fatal("Expected pending request")
	}

	opcode, handle, _, hasPending := tracker.GetPendingInfo()
	if !hasPending {
		t.Fatal("Expected hasPending=true")
	}
	if opcode != OpReadRequest {
		t.Errorf("Expected opcode 0x%02X, got 0x%02X", OpReadRequest, opcode)
	}
	if handle != 0x0010 {
		t.Errorf("Expected handle 0x0010, got 0x%04X", handle)
	}

	completed, err := tracker.CompleteRequest(OpReadResponse)
	if err != nil {
		t.Fatalf("CompleteRequest failed: %v", err)
	}
	if completed.Opcode != OpReadRequest || completed.Handle != 0x0010 {
		t.Errorf("CompleteRequest returned wrong pending request: %+v", completed)
	}

	if tracker.HasPending() {
		t.Fatal("Expected no pending request after completion")
	}
}

func TestRequestTracker_OnlyOneRequestAtTime(t *testing.T) {
	tracker := NewRequestTracker(100 * time.Millisecond)
	now := time.Now()

	if err := tracker.StartRequest(OpReadRequest, 0x0010, now); err != nil {
		t.Fatalf("First StartRequest failed: %v", err)
	}

	if err := tracker.StartRequest(OpWriteRequest, 0x0020, now); err == nil {
		t.Fatal("Expected error when starting second request, got nil")
	}

	if _, err := tracker.CompleteRequest(OpReadResponse); err != nil {
		t.Fatalf("CompleteRequest failed: %v", err)
	}

	if err := tracker.StartRequest(OpWriteRequest, 0x0020, now); err != nil {
		t.Fatalf("Second StartRequest failed after first completed: %v", err)
	}
}

func TestRequestTracker_CheckTimeout(t *testing.T) {
	tracker := NewRequestTracker(50 * time.Millisecond)
	sentAt := time.Now()

	if err := tracker.StartRequest(OpReadRequest, 0x0010, sentAt); err != nil {
		t.Fatalf("StartRequest failed: %v", err)
	}

	if _, expired := tracker.CheckTimeout(sentAt.Add(10 * time.Millisecond)); expired {
		t.Error("request should not be expired yet")
	}

	pending, expired := tracker.CheckTimeout(sentAt.Add(60 * time.Millisecond))
	if !expired {
		t.Error("request should be expired after its timeout elapses")
	}
	if pending.Opcode != OpReadRequest {
		t.Errorf("CheckTimeout returned wrong request: %+v", pending)
	}

	// CheckTimeout never clears the pending request on its own.
	if !tracker.HasPending() {
		t.Error("CheckTimeout must not clear the pending request")
	}
}

func TestRequestTracker_ErrorResponse(t *testing.T) {
	tracker := NewRequestTracker(100 * time.Millisecond)

	if err := tracker.StartRequest(OpReadRequest, 0x0010, time.Now()); err != nil {
		t.Fatalf("StartRequest failed: %v", err)
	}

	if _, err := tracker.CompleteRequest(OpErrorResponse); err != nil {
		t.Fatalf("CompleteRequest with error opcode failed: %v", err)
	}

	if tracker.HasPending() {
		t.Fatal("Expected no pending request after error completion")
	}
}

func TestRequestTracker_FailRequest(t *testing.T) {
	tracker := NewRequestTracker(100 * time.Millisecond)

	if err := tracker.StartRequest(OpReadRequest, 0x0010, time.Now()); err != nil {
		t.Fatalf("StartRequest failed: %v", err)
	}

	failed, err := tracker.FailRequest()
	if err != nil {
		t.Fatalf("FailRequest failed: %v", err)
	}
	if failed.Opcode != OpReadRequest {
		t.Errorf("FailRequest returned wrong request: %+v", failed)
	}

	if tracker.HasPending() {
		t.Fatal("Expected no pending request after failure")
	}

	if _, err := tracker.FailRequest(); err == nil {
		t.Fatal("Expected error failing when nothing is pending")
	}
}

func TestRequestTracker_CancelPending(t *testing.T) {
	tracker := NewRequestTracker(100 * time.Millisecond)

	if err := tracker.StartRequest(OpReadRequest, 0x0010, time.Now()); err != nil {
		t.Fatalf("StartRequest failed: %v", err)
	}

	cancelled := tracker.CancelPending()
	if cancelled == nil || cancelled.Opcode != OpReadRequest {
		t.Errorf("CancelPending returned wrong request: %+v", cancelled)
	}

	if tracker.HasPending() {
		t.Fatal("Expected no pending request after cancellation")
	}

	if c := tracker.CancelPending(); c != nil {
		t.Errorf("CancelPending on empty tracker should return nil, got %+v", c)
	}
}

func TestRequestTracker_WrongResponseOpcode(t *testing.T) {
	tracker := NewRequestTracker(100 * time.Millisecond)

	if err := tracker.StartRequest(OpReadRequest, 0x0010, time.Now()); err != nil {
		t.Fatalf("StartRequest failed: %v", err)
	}

	if _, err := tracker.CompleteRequest(OpWriteResponse); err == nil {
		t.Fatal("Expected error for wrong response opcode, got nil")
	}

	if !tracker.HasPending() {
		t.Fatal("Expected request to still be pending after wrong response")
	}
}

func TestRequestTracker_NoRequestToComplete(t *testing.T) {
	tracker := NewRequestTracker(100 * time.Millisecond)

	if _, err := tracker.CompleteRequest(OpReadResponse); err == nil {
		t.Fatal("Expected error when completing without pending request, got nil")
	}
}

func TestGetResponseOpcode(t *testing.T) {
	tests := []struct {
		request  byte
		response byte
	}{
		{OpExchangeMTURequest, OpExchangeMTUResponse},
		{OpReadRequest, OpReadResponse},
		{OpWriteRequest, OpWriteResponse},
		{OpPrepareWriteRequest, OpPrepareWriteResponse},
		{OpExecuteWriteRequest, OpExecuteWriteResponse},
		{OpReadByTypeRequest, OpReadByTypeResponse},
		{OpReadByGroupTypeRequest, OpReadByGroupTypeResponse},
		{OpWriteCommand, 0},
		{OpHandleValueNotification, 0},
	}

	for _, tt := range tests {
		got := GetResponseOpcode(tt.request)
		if got != tt.response {
			t.Errorf("GetResponseOpcode(0x%02X) = 0x%02X, want 0x%02X", tt.request, got, tt.response)
		}
	}
}
