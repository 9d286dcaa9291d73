package gatt

import "testing"

func TestOperationString(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpDiscovery, "Discovery"},
		{OpRead, "Read"},
		{OpWrite, "Write"},
		{OpConfigureMTU, "Configure"},
		{Operation(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Operation(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestSubtypeString(t *testing.T) {
	tests := []struct {
		subtype Subtype
		want    string
	}{
		{DiscSrvcAll, "DiscSrvcAll"},
		{ReadByHandle, "ReadByHandle"},
		{WritePrepare, "WritePrepare"},
		{SubtypeNone, "None"},
	}
	for _, tt := range tests {
		if got := tt.subtype.String(); got != tt.want {
			t.Errorf("Subtype(%d).String() = %q, want %q", tt.subtype, got, tt.want)
		}
	}
}
