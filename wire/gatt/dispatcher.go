package gatt

import (
	"github.com/user/gattcl/logger"
	"github.com/user/gattcl/wire/att"
)

// HandleInbound is the Response Dispatcher's entry point (C6), implementing
// §4.4. payload is the PDU body following the opcode byte; the bearer is
// responsible for separating the two before calling in.
func (e *Engine) HandleInbound(connID uint16, opcode byte, payload []byte) {
	tcb := e.tcbFor(connID)
	if tcb == nil {
		return
	}

	if opcode == att.OpHandleValueNotification || opcode == att.OpHandleValueIndication {
		if 1+len(payload) < tcb.payloadSize {
			e.handleNotification(tcb, connID, opcode, payload)
		} else {
			logger.Warn(logPrefix, "dropping oversize notify/indicate PDU (%d bytes) on conn=0x%04X", 1+len(payload), connID)
		}
		return
	}

	defer e.runSenderLoop(tcb)

	// Peek, don't pop: an unexpected opcode must not discard the real
	// outstanding command, it should be ignored and left waiting for its
	// actual response (or the response timer).
	head := tcb.queue.head()
	if head == nil {
		logger.Warn(logPrefix, "inbound opcode 0x%02X on conn=0x%04X with empty queue", opcode, connID)
		return
	}

	expected := att.GetResponseOpcode(head.opcode)
	if opcode != expected && opcode != att.OpErrorResponse {
		logger.Warn(logPrefix, "unexpected response opcode 0x%02X for request 0x%02X on conn=0x%04X, dropping", opcode, head.opcode, connID)
		return
	}

	cmd := tcb.queue.popHead()
	c := cmd.clcb
	if c == nil || c.completed {
		tcb.tracker.CompleteRequest(opcode)
		return
	}

	tcb.tracker.CompleteRequest(opcode)
	c.retryCount = 0

	pduLen := 1 + len(payload)
	if len(payload) >= tcb.payloadSize {
		logger.Warn(logPrefix, "oversize response (%d bytes) for opcode 0x%02X on conn=0x%04X", pduLen, opcode, connID)
		e.completeCLCB(c, StatusError, 0, AttributeValue{})
		return
	}

	if opcode == att.OpErrorResponse {
		// §4.4.1: a short Error Response is not malformed, it is treated as
		// an unknown error rather than routed through the generic decode
		// failure path.
		p := &att.ErrorResponse{ErrorCode: 0x7F}
		if len(payload) >= 4 {
			p.RequestOpcode = payload[0]
			p.Handle = leUint16(payload[1:3])
			p.ErrorCode = payload[3]
		}
		e.handleErrorResponse(tcb, c, p)
		return
	}

	pkt, err := att.DecodePacket(append([]byte{opcode}, payload...))
	if err != nil {
		logger.Warn(logPrefix, "malformed PDU for opcode 0x%02X on conn=0x%04X: %v", opcode, connID, err)
		e.completeCLCB(c, StatusInvalidPdu, 0, AttributeValue{})
		return
	}

	switch p := pkt.(type) {
	case *att.ExchangeMTUResponse:
		e.handleMTUResponse(tcb, c, p)

	case *att.FindInformationResponse:
		e.handleFindInformationResponse(tcb, c, p)

	case *att.ReadByTypeResponse:
		e.handleReadByTypeResponse(tcb, c, p)

	case *att.ReadByGroupTypeResponse:
		e.handleReadByGroupTypeResponse(tcb, c, p)

	case *att.ReadResponse:
		e.handleReadValue(tcb, c, p.Value)

	case *att.ReadBlobResponse:
		e.handleReadValue(tcb, c, p.Value)

	case *att.ReadMultipleResponse:
		e.handleReadValue(tcb, c, p.Values)

	case *att.FindByTypeValueResponse:
		e.handleFindByTypeValueResponse(tcb, c, p)

	case *att.WriteResponse:
		if c.Operation == OpWrite {
			e.completeCLCB(c, StatusSuccess, 0, AttributeValue{})
		}

	case *att.PrepareWriteResponse:
		e.handlePrepareWriteResponse(tcb, c, p)

	case *att.ExecuteWriteResponse:
		e.completeCLCB(c, StatusSuccess, 0, AttributeValue{})

	default:
		logger.Warn(logPrefix, "no handler for decoded type %T on conn=0x%04X", pkt, connID)
		e.completeCLCB(c, StatusError, 0, AttributeValue{})
	}
}

// discoveryErrorIsNormalCompletion reports whether reason is AttrNotFound
// against one of the four request opcodes that legitimately end that way
// when a discovery window runs out of matching attributes.
func discoveryErrorIsNormalCompletion(reqOpcode byte, reason uint8) bool {
	if reason != att.ErrAttributeNotFound {
		return false
	}
	switch reqOpcode {
	case att.OpReadByGroupTypeRequest, att.OpFindByTypeValueRequest, att.OpReadByTypeRequest, att.OpFindInformationRequest:
		return true
	default:
		return false
	}
}

// handleErrorResponse implements §4.4.1.
func (e *Engine) handleErrorResponse(tcb *TCB, c *CLCB, p *att.ErrorResponse) {
	reqOpcode, reason := p.RequestOpcode, p.ErrorCode

	if c.Operation == OpDiscovery && discoveryErrorIsNormalCompletion(reqOpcode, reason) {
		e.completeCLCB(c, StatusSuccess, 0, AttributeValue{})
		return
	}

	if c.Operation == OpWrite && reqOpcode == att.OpPrepareWriteRequest {
		c.status = StatusError
		c.reason = reason
		e.enqueueExecuteWrite(tcb, c, false)
		return
	}

	if c.Operation == OpRead && (c.Subtype == ReadByHandle || c.Subtype == ReadCharValue) &&
		reqOpcode == att.OpReadBlobRequest && reason == att.ErrAttributeNotLong && c.firstLongReadFlag {
		e.completeCLCB(c, StatusSuccess, 0, AttributeValue{Handle: c.StartHandle, Bytes: append([]byte{}, c.accumulator...)})
		return
	}

	e.completeCLCB(c, StatusError, reason, AttributeValue{})
}

// handleMTUResponse implements the distilled spec's literal
// payload_size = max(23, min(current, server_mtu)) formula, where "current"
// is the client's own requested ClientRxMTU rather than the
// pre-negotiation payloadSize — the latter is what this request is in the
// process of replacing, so clamping against it would make payloadSize
// monotone-nonincreasing instead of the intended nondecreasing behavior.
func (e *Engine) handleMTUResponse(tcb *TCB, c *CLCB, p *att.ExchangeMTUResponse) {
	negotiated := int(p.ServerRxMTU)
	if negotiated > c.requestedMTU {
		negotiated = c.requestedMTU
	}
	if negotiated < DefaultMTU {
		negotiated = DefaultMTU
	}
	if negotiated > tcb.payloadSize {
		tcb.payloadSize = negotiated
		tcb.Bearer.SetFixedChannelMTU(negotiated)
	}
	e.completeCLCB(c, StatusSuccess, 0, AttributeValue{})
}

// handleFindInformationResponse implements §4.4.2.
func (e *Engine) handleFindInformationResponse(tcb *TCB, c *CLCB, p *att.FindInformationResponse) {
	uuidLen := 2
	if p.Format == 0x02 {
		uuidLen = 16
	} else if p.Format != 0x01 {
		e.completeCLCB(c, StatusInvalidPdu, 0, AttributeValue{})
		return
	}

	data := p.Data
	var lastHandle Handle
	for len(data) >= 2+uuidLen {
		handle := Handle(leUint16(data[0:2]))
		uuidBytes := data[2 : 2+uuidLen]
		u, err := att.ParseUUID(uuidBytes)
		if err != nil {
			e.completeCLCB(c, StatusInvalidPdu, 0, AttributeValue{})
			return
		}
		e.emitDiscoveryResult(c, DiscoveryResult{Handle: handle, UUID: u})
		lastHandle = handle
		data = data[2+uuidLen:]
	}

	if lastHandle == HandleMax {
		c.StartHandle = 0
	} else {
		c.StartHandle = lastHandle + 1
	}
	e.issueDiscovery(tcb, c)
}

// enqueueExecuteWrite enqueues a final ExecuteWrite against the same CLCB,
// committing or cancelling the server's prepare-write queue.
func (e *Engine) enqueueExecuteWrite(tcb *TCB, c *CLCB, commit bool) {
	flags := uint8(0)
	if commit {
		flags = 1
	}
	if err := e.enqueue(tcb, c, att.OpExecuteWriteRequest, 0, &att.ExecuteWriteRequest{Flags: flags}); err != nil {
		e.completeCLCB(c, StatusError, 0, AttributeValue{})
		return
	}
	if !commit {
		e.completeCLCB(c, StatusError, c.reason, AttributeValue{})
	}
}

// handleReadByTypeResponse implements the ReadByType half of §4.4.3.
func (e *Engine) handleReadByTypeResponse(tcb *TCB, c *CLCB, p *att.ReadByTypeResponse) {
	entryLen := int(p.Length)
	valueLen := entryLen - 2
	if entryLen < 3 || valueLen > tcb.payloadSize-4 || entryLen > len(p.AttributeData) {
		e.completeCLCB(c, StatusError, 0, AttributeValue{})
		return
	}

	data := p.AttributeData
	var lastHandle Handle

	for len(data) >= entryLen {
		handle := Handle(leUint16(data[0:2]))
		if !handle.Valid() {
			e.completeCLCB(c, StatusError, att.ErrInvalidHandle, AttributeValue{})
			return
		}
		value := data[2:entryLen]

		switch {
		case c.Operation == OpDiscovery && c.Subtype == DiscIncSrvc:
			e.handleIncludeRecord(tcb, c, handle, value)
			return

		case c.Operation == OpDiscovery && c.Subtype == DiscChar:
			if !e.handleCharacteristicRecord(c, handle, value) {
				return
			}
			lastHandle = handle

		case c.Operation == OpRead && c.Subtype == ReadCharValue:
			if len(value) < 3 {
				e.completeCLCB(c, StatusInvalidPdu, 0, AttributeValue{})
				return
			}
			valHandle := Handle(leUint16(value[1:3]))
			u, err := att.ParseUUID(value[3:])
			if err != nil {
				e.completeCLCB(c, StatusInvalidPdu, 0, AttributeValue{})
				return
			}
			if !c.UUID.IsZero() && !c.UUID.Equal(u) {
				lastHandle = handle
				break
			}
			c.Subtype = ReadByHandle
			c.StartHandle = valHandle
			c.cursor = 0
			e.issueReadOrBlob(tcb, c)
			return

		case c.Operation == OpRead:
			c.cursor = valueLen
			c.StartHandle = handle
			if valueLen == tcb.payloadSize-4 {
				c.promotedToReadByHandle = true
				c.Subtype = ReadByHandle
				c.ensureAccumulator()
				c.appendAccumulator(value)
				c.readReqCurrentMTU = tcb.payloadSize
				c.firstLongReadFlag = false
				e.issueReadOrBlob(tcb, c)
			} else {
				e.completeCLCB(c, StatusSuccess, 0, AttributeValue{Handle: handle, Bytes: append([]byte{}, value...)})
			}
			return

		default:
			lastHandle = handle
		}

		data = data[entryLen:]
	}

	if lastHandle == HandleMax {
		c.StartHandle = 0
	} else {
		c.StartHandle = lastHandle + 1
	}
	e.issueDiscovery(tcb, c)
}

// handleIncludeRecord processes one Include declaration, resolving a
// 128-bit included-service UUID via a follow-up Read when the declaration
// itself only carried the short (incl_start, incl_end) pair.
func (e *Engine) handleIncludeRecord(tcb *TCB, c *CLCB, handle Handle, value []byte) {
	if len(value) < 4 {
		e.completeCLCB(c, StatusInvalidPdu, 0, AttributeValue{})
		return
	}
	inclStart := Handle(leUint16(value[0:2]))
	inclEnd := Handle(leUint16(value[2:4]))

	if len(value) == 6 {
		u, err := att.ParseUUID(value[4:6])
		if err != nil {
			e.completeCLCB(c, StatusInvalidPdu, 0, AttributeValue{})
			return
		}
		e.emitDiscoveryResult(c, DiscoveryResult{Handle: inclStart, EndHandle: inclEnd, UUID: u})
		if handle == HandleMax {
			c.StartHandle = 0
		} else {
			c.StartHandle = handle + 1
		}
		e.issueDiscovery(tcb, c)
		return
	}

	next := handle + 1
	if handle == HandleMax {
		next = 0
	}
	c.pendingInclSrvRead = &pendingInclService{startHandle: inclStart, endHandle: inclEnd, nextStart: next}
	if err := e.enqueue(tcb, c, att.OpReadRequest, uint16(inclStart), &att.ReadRequest{Handle: uint16(inclStart)}); err != nil {
		e.completeCLCB(c, StatusError, 0, AttributeValue{})
	}
}

// handleCharacteristicRecord processes one Characteristic Declaration.
// Returns false if it already completed or re-issued the CLCB and the
// caller should stop iterating.
func (e *Engine) handleCharacteristicRecord(c *CLCB, handle Handle, value []byte) bool {
	if len(value) < 3 {
		e.completeCLCB(c, StatusInvalidPdu, 0, AttributeValue{})
		return false
	}
	props := value[0]
	valueHandle := Handle(leUint16(value[1:3]))
	u, err := att.ParseUUID(value[3:])
	if err != nil {
		e.completeCLCB(c, StatusInvalidPdu, 0, AttributeValue{})
		return false
	}
	if !c.UUID.IsZero() && !c.UUID.Equal(u) {
		return true
	}
	e.emitDiscoveryResult(c, DiscoveryResult{Handle: handle, UUID: u, Properties: props, ValueHandle: valueHandle})
	return true
}

// handleReadByGroupTypeResponse implements the DiscSrvcAll half of §4.4.3.
func (e *Engine) handleReadByGroupTypeResponse(tcb *TCB, c *CLCB, p *att.ReadByGroupTypeResponse) {
	entryLen := int(p.Length)
	if entryLen < 5 || entryLen-4 > tcb.payloadSize-4 {
		e.completeCLCB(c, StatusError, 0, AttributeValue{})
		return
	}

	data := p.AttributeData
	var lastEnd Handle

	for len(data) >= entryLen {
		handle := Handle(leUint16(data[0:2]))
		endHandle := Handle(leUint16(data[2:4]))
		if !handle.Valid() {
			e.completeCLCB(c, StatusError, att.ErrInvalidHandle, AttributeValue{})
			return
		}
		u, err := att.ParseUUID(data[4:entryLen])
		if err != nil {
			e.completeCLCB(c, StatusInvalidPdu, 0, AttributeValue{})
			return
		}
		e.emitDiscoveryResult(c, DiscoveryResult{Handle: handle, EndHandle: endHandle, UUID: u})
		lastEnd = endHandle
		data = data[entryLen:]
	}

	if lastEnd == HandleMax {
		c.StartHandle = 0
	} else {
		c.StartHandle = lastEnd + 1
	}
	e.issueDiscovery(tcb, c)
}

// handleReadValue implements §4.4.4 for Read, ReadBlob, and ReadMultiple
// responses, all of which carry a bare value with no further structure.
func (e *Engine) handleReadValue(tcb *TCB, c *CLCB, value []byte) {
	if c.pendingInclSrvRead != nil {
		e.resumeIncludeRead(tcb, c, value)
		return
	}

	if c.Subtype != ReadByHandle {
		e.completeCLCB(c, StatusSuccess, 0, AttributeValue{Handle: c.StartHandle, Bytes: append([]byte{}, value...)})
		return
	}

	origLen := len(value)
	c.appendAccumulator(value)

	full := origLen == tcb.payloadSize-1 || origLen == c.readReqCurrentMTU-1
	if full && c.cursor < MaxAttributeLength {
		e.issueReadOrBlob(tcb, c)
		return
	}
	e.completeCLCB(c, StatusSuccess, 0, AttributeValue{Handle: c.StartHandle, Bytes: append([]byte{}, c.accumulator...)})
}

func (e *Engine) resumeIncludeRead(tcb *TCB, c *CLCB, value []byte) {
	pending := c.pendingInclSrvRead
	if len(value) != 16 {
		e.completeCLCB(c, StatusInvalidPdu, 0, AttributeValue{})
		return
	}
	u, err := att.ParseUUID(value)
	if err != nil {
		e.completeCLCB(c, StatusInvalidPdu, 0, AttributeValue{})
		return
	}
	e.emitDiscoveryResult(c, DiscoveryResult{Handle: pending.startHandle, EndHandle: pending.endHandle, UUID: u})
	c.StartHandle = pending.nextStart
	c.pendingInclSrvRead = nil
	e.issueDiscovery(tcb, c)
}

// handleFindByTypeValueResponse implements §4.4.5.
func (e *Engine) handleFindByTypeValueResponse(tcb *TCB, c *CLCB, p *att.FindByTypeValueResponse) {
	data := p.Data
	if len(data) == 0 || len(data)%4 != 0 {
		e.completeCLCB(c, StatusInvalidPdu, 0, AttributeValue{})
		return
	}

	var lastEnd Handle
	for len(data) >= 4 {
		handle := Handle(leUint16(data[0:2]))
		endHandle := Handle(leUint16(data[2:4]))
		e.emitDiscoveryResult(c, DiscoveryResult{Handle: handle, EndHandle: endHandle, UUID: c.UUID})
		lastEnd = endHandle
		data = data[4:]
	}

	if lastEnd == HandleMax {
		c.StartHandle = 0
	} else {
		c.StartHandle = lastEnd + 1
	}
	e.issueDiscovery(tcb, c)
}

// handlePrepareWriteResponse implements §4.4.6, delegating verification to
// att.VerifyPrepareWriteEcho with the request reconstructed from the CLCB's
// write bookkeeping (writeProgress/writeBaseOffset/cursor/writeValue).
func (e *Engine) handlePrepareWriteResponse(tcb *TCB, c *CLCB, p *att.PrepareWriteResponse) {
	expectedOffset := c.writeProgress
	if c.Subtype == WritePrepare {
		expectedOffset += c.writeBaseOffset
	}
	chunk := c.writeValue[c.writeProgress : c.writeProgress+c.cursor]
	expectedReq := &att.PrepareWriteRequest{
		Handle: uint16(c.writeHandle),
		Offset: uint16(expectedOffset),
		Value:  chunk,
	}

	if err := att.VerifyPrepareWriteEcho(expectedReq, p); err != nil {
		logger.Warn(logPrefix, "prepare write echo mismatch on conn=0x%04X: %v", c.ConnID, err)
		c.status = StatusError
		e.enqueueExecuteWrite(tcb, c, false)
		return
	}

	c.writeProgress += c.cursor
	if c.writeProgress >= len(c.writeValue) {
		if c.Subtype == WritePrepare {
			e.completeCLCB(c, StatusSuccess, 0, AttributeValue{Handle: c.writeHandle, Bytes: append([]byte{}, p.Value...)})
			return
		}
		e.enqueueExecuteWrite(tcb, c, true)
		return
	}
	e.sendPrepareWrite(tcb, c)
}

func leUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
