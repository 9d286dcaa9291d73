package gatt

import (
	"fmt"

	"github.com/user/gattcl/logger"
	"github.com/user/gattcl/wire/att"
)

// Discover submits a discovery operation (C5 entry point, gatt_act_discovery
// in the original). uuid is only consulted for DiscSrvcByUUID (service
// filter) and DiscChar (characteristic filter); pass the zero att.UUID
// otherwise.
func (e *Engine) Discover(connID uint16, subtype Subtype, start, end Handle, uuid att.UUID) (Status, error) {
	tcb := e.tcbFor(connID)
	if tcb == nil {
		return StatusError, fmt.Errorf("gatt: unknown connection 0x%04X", connID)
	}
	c := newCLCB(OpDiscovery, subtype, appIDFromConnID(connID), connID)
	c.StartHandle, c.EndHandle, c.UUID = start, end, uuid
	e.issueDiscovery(tcb, c)
	return StatusSuccess, nil
}

// issueDiscovery sends the PDU dictated by the CLCB's subtype over its
// current [StartHandle, EndHandle] window, or completes Success immediately
// if the window is exhausted or was never valid.
func (e *Engine) issueDiscovery(tcb *TCB, c *CLCB) {
	logDebug("discovery subtype=%s window=[0x%04X,0x%04X] trace=%s", c.Subtype, c.StartHandle, c.EndHandle, c.TraceID)
	if c.StartHandle == 0 || c.StartHandle > c.EndHandle {
		e.completeCLCB(c, StatusSuccess, 0, AttributeValue{})
		return
	}

	var err error
	switch c.Subtype {
	case DiscSrvcAll:
		err = e.enqueue(tcb, c, att.OpReadByGroupTypeRequest, 0, &att.ReadByGroupTypeRequest{
			StartHandle: uint16(c.StartHandle),
			EndHandle:   uint16(c.EndHandle),
			Type:        UUIDPrimaryService,
		})

	case DiscSrvcByUUID:
		err = e.enqueue(tcb, c, att.OpFindByTypeValueRequest, 0, &att.FindByTypeValueRequest{
			StartHandle: uint16(c.StartHandle),
			EndHandle:   uint16(c.EndHandle),
			Type:        0x2800,
			Value:       filterValueBytes(c.UUID),
		})

	case DiscIncSrvc:
		err = e.enqueue(tcb, c, att.OpReadByTypeRequest, 0, &att.ReadByTypeRequest{
			StartHandle: uint16(c.StartHandle),
			EndHandle:   uint16(c.EndHandle),
			Type:        UUIDInclude,
		})

	case DiscChar:
		err = e.enqueue(tcb, c, att.OpReadByTypeRequest, 0, &att.ReadByTypeRequest{
			StartHandle: uint16(c.StartHandle),
			EndHandle:   uint16(c.EndHandle),
			Type:        UUIDCharacteristic,
		})

	case DiscCharDescriptor:
		err = e.enqueue(tcb, c, att.OpFindInformationRequest, 0, &att.FindInformationRequest{
			StartHandle: uint16(c.StartHandle),
			EndHandle:   uint16(c.EndHandle),
		})

	default:
		err = fmt.Errorf("gatt: unknown discovery subtype %s", c.Subtype)
	}

	if err != nil {
		e.completeCLCB(c, StatusError, 0, AttributeValue{})
	}
}

// filterValueBytes returns the wire bytes for a FindByTypeValue operand: a
// 32-bit UUID is canonicalized to 128 bits (the only place that conversion
// happens), a 16- or 128-bit UUID is sent in its own natural width.
func filterValueBytes(u att.UUID) []byte {
	if u.ShortestLength() == 4 {
		return u.Canonical()
	}
	return u.Bytes()
}

// Read submits a read operation. handles carries the ReadMultiple operand
// when subtype is ReadMultipleSubtype; otherwise start/end/uuid are used
// per subtype as described in §4.3.
func (e *Engine) Read(connID uint16, subtype Subtype, start, end Handle, uuid att.UUID, handles []uint16) (Status, error) {
	tcb := e.tcbFor(connID)
	if tcb == nil {
		return StatusError, fmt.Errorf("gatt: unknown connection 0x%04X", connID)
	}
	c := newCLCB(OpRead, subtype, appIDFromConnID(connID), connID)
	c.StartHandle, c.EndHandle, c.UUID = start, end, uuid
	c.readHandles = handles
	e.issueRead(tcb, c)
	return StatusSuccess, nil
}

func (e *Engine) issueRead(tcb *TCB, c *CLCB) {
	var err error
	switch c.Subtype {
	case ReadCharValue:
		err = e.enqueue(tcb, c, att.OpReadByTypeRequest, 0, &att.ReadByTypeRequest{
			StartHandle: uint16(c.StartHandle),
			EndHandle:   uint16(c.EndHandle),
			Type:        UUIDCharacteristic,
		})

	case ReadByTypeSubtype:
		err = e.enqueue(tcb, c, att.OpReadByTypeRequest, 0, &att.ReadByTypeRequest{
			StartHandle: uint16(c.StartHandle),
			EndHandle:   uint16(c.EndHandle),
			Type:        c.UUID.Bytes(),
		})

	case ReadByHandle:
		e.issueReadOrBlob(tcb, c)

	case ReadPartial:
		err = e.enqueue(tcb, c, att.OpReadBlobRequest, uint16(c.StartHandle), &att.ReadBlobRequest{
			Handle: uint16(c.StartHandle),
			Offset: uint16(c.cursor),
		})

	case ReadMultipleSubtype:
		err = e.enqueue(tcb, c, att.OpReadMultipleRequest, 0, &att.ReadMultipleRequest{Handles: c.readHandles})

	default:
		err = fmt.Errorf("gatt: unknown read subtype %s", c.Subtype)
	}

	if err != nil {
		e.completeCLCB(c, StatusError, 0, AttributeValue{})
	}
}

// issueReadOrBlob sends Read on the first round of a ReadByHandle operation
// and ReadBlob on every continuation, toggling firstLongReadFlag on each
// blob per the design notes' supplemented behavior.
func (e *Engine) issueReadOrBlob(tcb *TCB, c *CLCB) {
	var err error
	if c.cursor == 0 {
		c.readReqCurrentMTU = tcb.payloadSize
		err = e.enqueue(tcb, c, att.OpReadRequest, uint16(c.StartHandle), &att.ReadRequest{Handle: uint16(c.StartHandle)})
	} else {
		c.firstLongReadFlag = !c.firstLongReadFlag
		err = e.enqueue(tcb, c, att.OpReadBlobRequest, uint16(c.StartHandle), &att.ReadBlobRequest{
			Handle: uint16(c.StartHandle),
			Offset: uint16(c.cursor),
		})
	}
	if err != nil {
		e.completeCLCB(c, StatusError, 0, AttributeValue{})
	}
}

// Write submits a write operation. offset is only meaningful for
// WritePrepare (reliable write), where it is the caller-supplied base
// offset into the attribute the echoed chunks are measured from.
func (e *Engine) Write(connID uint16, subtype Subtype, handle Handle, value []byte, offset int, signed bool) (Status, error) {
	tcb := e.tcbFor(connID)
	if tcb == nil {
		return StatusError, fmt.Errorf("gatt: unknown connection 0x%04X", connID)
	}
	c := newCLCB(OpWrite, subtype, appIDFromConnID(connID), connID)
	c.writeHandle = handle
	c.writeValue = value
	c.writeBaseOffset = offset
	c.writeSigned = signed
	e.issueWrite(tcb, c)
	return StatusSuccess, nil
}

func (e *Engine) issueWrite(tcb *TCB, c *CLCB) {
	switch c.Subtype {
	case WriteNoRsp:
		opcode := byte(att.OpWriteCommand)
		var err error
		if c.writeSigned {
			err = e.enqueue(tcb, c, att.OpSignedWriteCommand, uint16(c.writeHandle), &att.SignedWriteCommand{
				Handle: uint16(c.writeHandle), Value: c.writeValue,
			})
		} else {
			err = e.enqueue(tcb, c, opcode, uint16(c.writeHandle), &att.WriteCommand{
				Handle: uint16(c.writeHandle), Value: c.writeValue,
			})
		}
		if err != nil {
			e.completeCLCB(c, StatusError, 0, AttributeValue{})
		}

	case WriteSubtype:
		if len(c.writeValue) <= tcb.payloadSize-3 {
			if err := e.enqueue(tcb, c, att.OpWriteRequest, uint16(c.writeHandle), &att.WriteRequest{
				Handle: uint16(c.writeHandle), Value: c.writeValue,
			}); err != nil {
				e.completeCLCB(c, StatusError, 0, AttributeValue{})
			}
			return
		}
		e.sendPrepareWrite(tcb, c)

	case WritePrepare:
		e.sendPrepareWrite(tcb, c)

	default:
		e.completeCLCB(c, StatusError, 0, AttributeValue{})
	}
}

// sendPrepareWrite implements gatt_send_prepare_write: it chunks the
// remaining bytes of the write value at the current write progress to fit
// payloadSize-5, remembering the chunk size in cursor so the response
// handler (handlePrepareWriteResponse) can reconstruct the request and
// verify the server's echo.
func (e *Engine) sendPrepareWrite(tcb *TCB, c *CLCB) {
	maxChunk := tcb.payloadSize - 5
	if maxChunk <= 0 {
		e.completeCLCB(c, StatusError, 0, AttributeValue{})
		return
	}

	remaining := len(c.writeValue) - c.writeProgress
	toSend := remaining
	if toSend > maxChunk {
		toSend = maxChunk
	}

	offsetOnWire := c.writeProgress
	if c.Subtype == WritePrepare {
		offsetOnWire += c.writeBaseOffset
	}

	chunk := c.writeValue[c.writeProgress : c.writeProgress+toSend]
	if err := e.enqueue(tcb, c, att.OpPrepareWriteRequest, uint16(c.writeHandle), &att.PrepareWriteRequest{
		Handle: uint16(c.writeHandle),
		Offset: uint16(offsetOnWire),
		Value:  chunk,
	}); err != nil {
		e.completeCLCB(c, StatusError, 0, AttributeValue{})
		return
	}
	c.cursor = toSend
}

// ConfigMTU submits an MTU exchange.
func (e *Engine) ConfigMTU(connID uint16, clientRxMTU int) (Status, error) {
	tcb := e.tcbFor(connID)
	if tcb == nil {
		return StatusError, fmt.Errorf("gatt: unknown connection 0x%04X", connID)
	}
	c := newCLCB(OpConfigureMTU, SubtypeNone, appIDFromConnID(connID), connID)
	c.requestedMTU = clientRxMTU
	if err := e.enqueue(tcb, c, att.OpExchangeMTURequest, 0, &att.ExchangeMTURequest{ClientRxMTU: uint16(clientRxMTU)}); err != nil {
		e.completeCLCB(c, StatusError, 0, AttributeValue{})
		return StatusError, err
	}
	return StatusSuccess, nil
}

func logDebug(format string, args ...interface{}) {
	logger.Debug(logPrefix, format, args...)
}
