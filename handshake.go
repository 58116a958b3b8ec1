package rfdb

// Wire protocol versions understood by this engine. Version 1 is the
// legacy single-database protocol; version 2 adds multi-database
// addressing.
const (
	ProtocolVersionLegacy uint32 = 1
	ProtocolVersion       uint32 = 2
)

// EngineVersion identifies this engine build in handshake responses.
const EngineVersion = "rfdb-go/1.0"

// HandshakeInfo is the server side of protocol negotiation.
type HandshakeInfo struct {
	Protocol      uint32 `json:"protocol"`
	EngineVersion string `json:"engine_version"`
}

// Handshake negotiates the protocol version with a client: the agreed
// version is the lower of the client's and ours, floored at the legacy
// version for clients that predate negotiation.
func Handshake(clientProtocol uint32) HandshakeInfo {
	p := ProtocolVersion
	if clientProtocol < p {
		p = clientProtocol
	}
	if p < ProtocolVersionLegacy {
		p = ProtocolVersionLegacy
	}
	return HandshakeInfo{
		Protocol:      p,
		EngineVersion: EngineVersion,
	}
}
