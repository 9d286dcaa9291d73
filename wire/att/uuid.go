package att

import "fmt"

// UUID is a Bluetooth attribute UUID in one of its three wire forms: 16-bit,
// 32-bit, or 128-bit. Bytes are kept in wire order (little-endian).
//
// A 32-bit UUID only ever appears as an operand the client supplies to
// FindByTypeValue; on the wire it is always expanded to 128 bits before
// comparison, so Canonical is the only form other components should compare.
type UUID struct {
	b []byte
}

// bluetoothBaseUUID is the Bluetooth SIG base UUID
// 00000000-0000-1000-8000-00805F9B34FB, little-endian, with the last four
// bytes left zero for the caller's 16/32-bit value.
var bluetoothBaseUUID = []byte{0xFB, 0x34, 0x9B, 0x5F, 0x80, 0x00, 0x00, 0x80, 0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// NewUUID16 builds a 16-bit UUID from its numeric value.
func NewUUID16(v uint16) UUID {
	return UUID{b: []byte{byte(v), byte(v >> 8)}}
}

// NewUUID32 builds a 32-bit UUID from its numeric value.
func NewUUID32(v uint32) UUID {
	return UUID{b: []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}}
}

// NewUUID128 builds a UUID from its raw 16-byte little-endian wire form.
func NewUUID128(b []byte) (UUID, error) {
	if len(b) != 16 {
		return UUID{}, fmt.Errorf("att: 128-bit UUID must be 16 bytes, got %d", len(b))
	}
	return UUID{b: append([]byte{}, b...)}, nil
}

// ParseUUID accepts exactly a 2-byte or 16-byte wire form; anything else is
// rejected, per the PDU codec's UUID parsing rule.
func ParseUUID(b []byte) (UUID, error) {
	switch len(b) {
	case 2, 16:
		return UUID{b: append([]byte{}, b...)}, nil
	default:
		return UUID{}, fmt.Errorf("att: invalid UUID length %d (want 2 or 16)", len(b))
	}
}

// ShortestLength returns 2, 4, or 16 depending on the stored form.
func (u UUID) ShortestLength() int { return len(u.b) }

// Bytes returns the UUID in its original wire form (2, 4, or 16 bytes).
func (u UUID) Bytes() []byte { return append([]byte{}, u.b...) }

// Canonical returns the UUID expanded to 128-bit little-endian wire bytes,
// the only form in which two UUIDs of different declared widths compare
// equal.
func (u UUID) Canonical() []byte {
	switch len(u.b) {
	case 16:
		return append([]byte{}, u.b...)
	case 4, 2:
		// A 32-bit UUID's upper 16 bits land in bytes 14-15, where a 16-bit
		// UUID leaves the base UUID's zeros.
		out := append([]byte{}, bluetoothBaseUUID...)
		copy(out[12:], u.b)
		return out
	default:
		return nil
	}
}

// Equal compares two UUIDs by their canonical 128-bit form.
func (u UUID) Equal(other UUID) bool {
	a, b := u.Canonical(), other.Canonical()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether the UUID was never assigned a form.
func (u UUID) IsZero() bool { return len(u.b) == 0 }

func (u UUID) String() string {
	switch len(u.b) {
	case 2:
		return fmt.Sprintf("%04X", uint16(u.b[0])|uint16(u.b[1])<<8)
	case 4:
		return fmt.Sprintf("%08X", uint32(u.b[0])|uint32(u.b[1])<<8|uint32(u.b[2])<<16|uint32(u.b[3])<<24)
	case 16:
		r := make([]byte, 16)
		for i, v := range u.b {
			r[15-i] = v
		}
		return fmt.Sprintf("%08X-%04X-%04X-%04X-%012X", r[0:4], r[4:6], r[6:8], r[8:10], r[10:16])
	default:
		return "<zero-uuid>"
	}
}
