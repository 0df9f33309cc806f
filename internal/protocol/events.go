package protocol

// Notify envelopes wrap an inner typed event. The router dispatches on
// Type and must silently ignore tags it does not recognize.

const (
	EventBasic   = "gamepb.userpb.BasicNotify"
	EventLands   = "gamepb.plantpb.LandsNotify"
	EventItems   = "gamepb.itempb.ItemNotify"
	EventKickout = "gamepb.userpb.KickoutNotify"
)

type Event struct {
	Type string `cbor:"message_type"`
	Body []byte `cbor:"body,omitempty"`
}

// DecodeEvent parses the inner event of a Notify envelope body.
func DecodeEvent(b []byte) (Event, error) {
	var ev Event
	if err := decMode.Unmarshal(b, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// EncodeEvent builds a Notify envelope body. Mostly useful for tests and
// fake servers.
func EncodeEvent(ev Event) ([]byte, error) {
	return encMode.Marshal(ev)
}

// BasicNotify pushes a fresh BasicInfo after anything server-side changed
// the account's level, gold or experience.
type BasicNotify struct {
	Basic *BasicInfo `cbor:"basic"`
}

// LandsNotify pushes the new state of changed lands on some farm. HostGID
// identifies whose farm; receivers must ignore notifies for other hosts.
type LandsNotify struct {
	HostGID uint64 `cbor:"host_gid"`
	Lands   []Land `cbor:"lands"`
}

type ItemChange struct {
	Item *Item `cbor:"item"`
}

// ItemNotify pushes inventory deltas, including the currency item.
type ItemNotify struct {
	Items []ItemChange `cbor:"items"`
}

// KickoutNotify is a forced termination: the server will close the
// connection and the account must stop.
type KickoutNotify struct {
	Reason string `cbor:"reason,omitempty"`
}
