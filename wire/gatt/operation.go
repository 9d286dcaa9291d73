package gatt

// Operation is the broad kind of a client-driven GATT operation.
type Operation int

const (
	OpDiscovery Operation = iota
	OpRead
	OpWrite
	OpConfigureMTU
)

func (o Operation) String() string {
	switch o {
	case OpDiscovery:
		return "Discovery"
	case OpRead:
		return "Read"
	case OpWrite:
		return "Write"
	case OpConfigureMTU:
		return "Configure"
	default:
		return "Unknown"
	}
}

// Subtype narrows an Operation to the specific algorithm the driver runs.
// The original stack folds transient state ("promoted to long read",
// "awaiting 128-bit UUID read-back") into tag bits on this byte; this
// engine keeps the subtype itself a plain enum and models that transient
// state as explicit fields on CLCB instead (see CLCB.promotedToReadByHandle
// and CLCB.pendingInclSrvRead).
type Subtype int

const (
	SubtypeNone Subtype = iota

	// Discovery subtypes.
	DiscSrvcAll
	DiscSrvcByUUID
	DiscIncSrvc
	DiscChar
	DiscCharDescriptor

	// Read subtypes.
	ReadByHandle
	ReadByTypeSubtype
	ReadCharValue
	ReadPartial
	ReadMultipleSubtype

	// Write subtypes.
	WriteNoRsp
	WriteSubtype
	WritePrepare
)

func (s Subtype) String() string {
	switch s {
	case DiscSrvcAll:
		return "DiscSrvcAll"
	case DiscSrvcByUUID:
		return "DiscSrvcByUUID"
	case DiscIncSrvc:
		return "DiscIncSrvc"
	case DiscChar:
		return "DiscChar"
	case DiscCharDescriptor:
		return "DiscCharDescriptor"
	case ReadByHandle:
		return "ReadByHandle"
	case ReadByTypeSubtype:
		return "ReadByType"
	case ReadCharValue:
		return "ReadCharValue"
	case ReadPartial:
		return "ReadPartial"
	case ReadMultipleSubtype:
		return "ReadMultiple"
	case WriteNoRsp:
		return "WriteNoRsp"
	case WriteSubtype:
		return "Write"
	case WritePrepare:
		return "WritePrepare"
	default:
		return "None"
	}
}
