package gatt

// Well-known GATT declaration/descriptor UUIDs (16-bit, little-endian on the wire).
// A client uses these as filters when it drives discovery itself.
var (
	UUIDPrimaryService   = []byte{0x00, 0x28} // 0x2800
	UUIDSecondaryService = []byte{0x01, 0x28} // 0x2801
	UUIDInclude          = []byte{0x02, 0x28} // 0x2802
	UUIDCharacteristic   = []byte{0x03, 0x28} // 0x2803

	UUIDCharExtProps               = []byte{0x00, 0x29} // 0x2900
	UUIDCharUserDescription        = []byte{0x01, 0x29} // 0x2901
	UUIDClientCharacteristicConfig = []byte{0x02, 0x29} // 0x2902 (CCCD)
	UUIDServerCharacteristicConfig = []byte{0x03, 0x29} // 0x2903
	UUIDCharPresentationFormat     = []byte{0x04, 0x29} // 0x2904
	UUIDCharAggregateFormat        = []byte{0x05, 0x29} // 0x2905
)

// Characteristic Properties bitmask, as carried in a Characteristic Declaration value.
const (
	PropBroadcast                 = 0x01
	PropRead                      = 0x02
	PropWriteWithoutResponse      = 0x04
	PropWrite                     = 0x08
	PropNotify                    = 0x10
	PropIndicate                  = 0x20
	PropAuthenticatedSignedWrites = 0x40
	PropExtendedProperties        = 0x80
)

// CCCD values a client writes to the Client Characteristic Configuration
// Descriptor to enable or disable server-initiated notify/indicate.
const (
	CCCDNotificationsDisabled = 0x0000
	CCCDNotificationsEnabled  = 0x0001
	CCCDIndicationsEnabled    = 0x0002
)

// UUID16 returns a 16-bit UUID in its little-endian wire encoding.
func UUID16(val uint16) []byte {
	return []byte{byte(val), byte(val >> 8)}
}

// UUID128 expands a 16-bit UUID to its 128-bit form under the Bluetooth SIG
// base UUID (00000000-0000-1000-8000-00805F9B34FB), little-endian on the wire.
func UUID128(shortUUID uint16) []byte {
	return []byte{
		0xFB, 0x34, 0x9B, 0x5F, 0x80, 0x00, 0x00, 0x80, 0x00, 0x10, 0x00, 0x00,
		byte(shortUUID), byte(shortUUID >> 8), 0x00, 0x00,
	}
}

// IsUUID16 reports whether a UUID is in its 16-bit wire form.
func IsUUID16(uuid []byte) bool { return len(uuid) == 2 }

// IsUUID128 reports whether a UUID is in its 128-bit wire form.
func IsUUID128(uuid []byte) bool { return len(uuid) == 16 }

func bytesEqual(a, b []byte) bool {
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
