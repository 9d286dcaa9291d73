package gatt

import "testing"

func TestNewCLCBDefaults(t *testing.T) {
	c := newCLCB(OpRead, ReadByHandle, 3, 0x0102)
	if c.TraceID == "" {
		t.Error("newCLCB must assign a non-empty TraceID")
	}
	if c.AppID != 3 || c.ConnID != 0x0102 {
		t.Errorf("unexpected AppID/ConnID: %d/0x%04X", c.AppID, c.ConnID)
	}
	if c.status != StatusSuccess {
		t.Errorf("newCLCB must default status to Success, got %s", c.status)
	}
}

func TestAppendAccumulatorRespectsMaxAttributeLength(t *testing.T) {
	c := newCLCB(OpRead, ReadByHandle, 1, 1)
	c.appendAccumulator(make([]byte, MaxAttributeLength-2))
	c.appendAccumulator([]byte{1, 2, 3, 4}) // overflows by 2 bytes

	if len(c.accumulator) != MaxAttributeLength {
		t.Fatalf("accumulator length = %d, want %d", len(c.accumulator), MaxAttributeLength)
	}
	if c.cursor != MaxAttributeLength {
		t.Fatalf("cursor = %d, want %d", c.cursor, MaxAttributeLength)
	}

	// Once full, further appends must be silently dropped rather than grow
	// the slice past the limit.
	c.appendAccumulator([]byte{9, 9})
	if len(c.accumulator) != MaxAttributeLength {
		t.Fatalf("accumulator grew past MaxAttributeLength: %d", len(c.accumulator))
	}
}
