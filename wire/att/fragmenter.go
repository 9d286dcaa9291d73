package att

import "fmt"

// ShouldFragment reports whether a write value exceeds what fits in a
// single Write Request and must instead go through the Prepare
// Write/Execute Write long-write path.
// ATT Write Request format: [Opcode:1][Handle:2][Value:N], so the max
// value that fits in one PDU is mtu-3.
func ShouldFragment(mtu int, value []byte) bool {
	if mtu <= 0 {
		mtu = 23
	}
	return len(value) > mtu-3
}

// FragmentWrite splits a write value into a sequence of Prepare Write
// requests, each holding as much of the value as fits given the current
// MTU. PrepareWriteRequest format: [Opcode:1][Handle:2][Offset:2][Value:N],
// so the max chunk payload is mtu-5.
func FragmentWrite(handle uint16, value []byte, mtu int) ([]*PrepareWriteRequest, error) {
	if !ShouldFragment(mtu, value) {
		return nil, fmt.Errorf("att: value does not need fragmentation (len=%d, mtu=%d)", len(value), mtu)
	}

	maxChunkSize := mtu - 5
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("att: MTU too small for fragmentation (mtu=%d)", mtu)
	}

	var requests []*PrepareWriteRequest
	offset := uint16(0)
	for int(offset) < len(value) {
		chunkSize := maxChunkSize
		if remaining := len(value) - int(offset); remaining < chunkSize {
			chunkSize = remaining
		}

		chunk := make([]byte, chunkSize)
		copy(chunk, value[offset:int(offset)+chunkSize])

		requests = append(requests, &PrepareWriteRequest{
			Handle: handle,
			Offset: offset,
			Value:  chunk,
		})

		offset += uint16(chunkSize)
	}

	return requests, nil
}

// VerifyPrepareWriteEcho implements the client-side half of a long write:
// the server must echo back exactly the handle, offset, and bytes it was
// just sent. Any mismatch means the write must be cancelled rather than
// committed (gatt_check_write_long_terminate in the original stack).
func VerifyPrepareWriteEcho(req *PrepareWriteRequest, resp *PrepareWriteResponse) error {
	if resp.Handle != req.Handle {
		return fmt.Errorf("att: prepare write echo handle mismatch (got 0x%04X, want 0x%04X)", resp.Handle, req.Handle)
	}
	if resp.Offset != req.Offset {
		return fmt.Errorf("att: prepare write echo offset mismatch (got %d, want %d)", resp.Offset, req.Offset)
	}
	if len(resp.Value) != len(req.Value) {
		return fmt.Errorf("att: prepare write echo length mismatch (got %d, want %d)", len(resp.Value), len(req.Value))
	}
	for i := range req.Value {
		if resp.Value[i] != req.Value[i] {
			return fmt.Errorf("att: prepare write echo value mismatch at byte %d", i)
		}
	}
	return nil
}
