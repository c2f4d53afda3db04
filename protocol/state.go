package protocol

import "github.com/frankenmichl/twopence"

// State is the per-link transaction protocol state: a small record carried
// into every frame build so the codec can stamp the right header shape for
// the negotiated link version and the right transaction id.
type State struct {
	Version twopence.ProtocolVersion
	// TransactionID is ignored for VersionLegacy (the header carries none;
	// a legacy link supports exactly one transaction).
	TransactionID uint16
	// Client is true when this state belongs to the client side of the
	// link; it does not affect wire bytes but is useful to callers that
	// log or assert directionality.
	Client bool
}

// HeaderSize returns the on-wire header length for v: 4 bytes for the
// legacy single-transaction frame, 6 bytes (adds a 2-byte transaction id)
// for the multiplexed frame.
func HeaderSize(v twopence.ProtocolVersion) int {
	if v == twopence.VersionMultiplex {
		return 6
	}
	return 4
}

// HeaderSize is the header length for this state's negotiated version.
func (s State) HeaderSize() int { return HeaderSize(s.Version) }
