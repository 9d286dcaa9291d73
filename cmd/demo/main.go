// Command demo wires a single in-process fake peripheral to gatt.Engine
// and drives MTU exchange, full-database discovery, a characteristic read,
// and a short write against it, printing each step as it completes.
package main

import (
	"fmt"
	"time"

	"github.com/user/gattcl/wire/att"
	"github.com/user/gattcl/wire/gatt"
)

// fakePeripheral is a minimal single-service GATT server living entirely in
// memory: one Device Information service (handles 0x0001-0x0004) with a
// Device Name characteristic at value handle 0x0003. It implements
// gatt.Bearer directly and calls back into the engine synchronously, the
// way a real L2CAP fixed channel would deliver inbound PDUs from its own
// read loop.
type fakePeripheral struct {
	engine    *gatt.Engine
	connID    uint16
	deviceMTU int
	name      []byte
}

const (
	hSvcStart      = 0x0001
	hSvcEnd        = 0x0004
	hCharDecl      = 0x0002
	hCharValue     = 0x0003
	uuidDeviceInfo = 0x180A
	uuidDeviceName = 0x2A00
)

// le16 encodes a raw 16-bit field (a handle, not a UUID) as little-endian
// bytes for hand-assembling canned response bodies.
func le16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }

func (p *fakePeripheral) SendPDU(pdu []byte) gatt.BearerStatus {
	opcode := pdu[0]
	body := pdu[1:]
	req, err := att.DecodePacket(pdu)
	if err != nil {
		fmt.Printf("  [peripheral] malformed request opcode=0x%02X: %v\n", opcode, err)
		return gatt.BearerSuccess
	}

	var rsp interface{}
	switch r := req.(type) {
	case *att.ExchangeMTURequest:
		if int(r.ClientRxMTU) < p.deviceMTU {
			p.deviceMTU = int(r.ClientRxMTU)
		}
		rsp = &att.ExchangeMTUResponse{ServerRxMTU: uint16(p.deviceMTU)}

	case *att.ReadByGroupTypeRequest:
		if r.StartHandle > hSvcStart {
			rsp = &att.ErrorResponse{RequestOpcode: att.OpReadByGroupTypeRequest, Handle: r.StartHandle, ErrorCode: att.ErrAttributeNotFound}
			break
		}
		entry := append(le16(hSvcStart), le16(hSvcEnd)...)
		entry = append(entry, gatt.UUID16(uuidDeviceInfo)...)
		rsp = &att.ReadByGroupTypeResponse{Length: uint8(len(entry)), AttributeData: entry}

	case *att.ReadByTypeRequest:
		if r.StartHandle > hCharDecl {
			rsp = &att.ErrorResponse{RequestOpcode: att.OpReadByTypeRequest, Handle: r.StartHandle, ErrorCode: att.ErrAttributeNotFound}
			break
		}
		value := append([]byte{byte(gatt.PropRead)}, le16(hCharValue)...)
		value = append(value, gatt.UUID16(uuidDeviceName)...)
		entry := append(le16(hCharDecl), value...)
		rsp = &att.ReadByTypeResponse{Length: uint8(len(entry)), AttributeData: entry}

	case *att.ReadRequest:
		if r.Handle != hCharValue {
			rsp = &att.ErrorResponse{RequestOpcode: att.OpReadRequest, Handle: r.Handle, ErrorCode: att.ErrInvalidHandle}
			break
		}
		rsp = &att.ReadResponse{Value: p.name}

	case *att.WriteRequest:
		if r.Handle != hCharValue {
			rsp = &att.ErrorResponse{RequestOpcode: att.OpWriteRequest, Handle: r.Handle, ErrorCode: att.ErrInvalidHandle}
			break
		}
		p.name = append([]byte{}, r.Value...)
		rsp = &att.WriteResponse{}

	default:
		fmt.Printf("  [peripheral] no canned response for request type %T (body %d bytes)\n", req, len(body))
		return gatt.BearerSuccess
	}

	pduBytes, err := att.EncodePacket(rsp)
	if err != nil {
		panic(err)
	}
	p.engine.HandleInbound(p.connID, pduBytes[0], pduBytes[1:])
	return gatt.BearerSuccess
}

func (p *fakePeripheral) SetFixedChannelMTU(mtu int) {
	fmt.Printf("  [peripheral] fixed channel MTU now %d\n", mtu)
}

func main() {
	fmt.Println("=== GATT client engine demo ===")

	engine := gatt.NewEngine(gatt.WithResponseTimeout(5 * time.Second))

	// Buffered: the fake peripheral answers synchronously, so the completion
	// callback runs inside the engine call, before main reaches <-done.
	done := make(chan struct{}, 1)
	appID := engine.Register(
		func(result gatt.DiscoveryResult) {
			fmt.Printf("  discovered handle=0x%04X uuid=%v\n", result.Handle, result.UUID)
		},
		func(connID uint16, op gatt.Operation, status gatt.Status, value gatt.AttributeValue, err error) {
			if err != nil {
				fmt.Printf("  %s failed: %v\n", op, err)
			} else {
				fmt.Printf("  %s completed: handle=0x%04X bytes=%q\n", op, value.Handle, value.Bytes)
			}
			done <- struct{}{}
		},
	)

	peripheral := &fakePeripheral{deviceMTU: 100, name: []byte("Demo Device")}
	connID, err := engine.Connect(peripheral, appID)
	if err != nil {
		panic(err)
	}
	peripheral.engine = engine
	peripheral.connID = connID

	fmt.Println("\n-- MTU exchange --")
	engine.ConfigMTU(connID, 185)
	<-done

	fmt.Println("\n-- Discover all primary services --")
	engine.Discover(connID, gatt.DiscSrvcAll, gatt.HandleMin, gatt.HandleMax, att.UUID{})
	<-done

	fmt.Println("\n-- Read Device Name by handle --")
	engine.Read(connID, gatt.ReadByHandle, gatt.Handle(hCharValue), gatt.Handle(hCharValue), att.UUID{}, nil)
	<-done

	fmt.Println("\n-- Write new Device Name --")
	engine.Write(connID, gatt.WriteSubtype, gatt.Handle(hCharValue), []byte("Renamed Device"), 0, false)
	<-done

	fmt.Println("\n-- Read back the new value --")
	engine.Read(connID, gatt.ReadByHandle, gatt.Handle(hCharValue), gatt.Handle(hCharValue), att.UUID{}, nil)
	<-done

	fmt.Println("\n✅ demo complete")
}
