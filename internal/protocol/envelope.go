package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Kind discriminates the three envelope directions on the wire.
type Kind uint8

const (
	KindRequest  Kind = 1
	KindResponse Kind = 2
	KindNotify   Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindNotify:
		return "notify"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Envelope is one framed wire message. Immutable once constructed.
//
// Seq is always the sender's own outbound sequence. Ack references the
// peer: on a response it names the request being answered, on a request it
// echoes the highest inbound Seq the sender has observed so far. Body is
// opaque to the framing layer.
type Envelope struct {
	Service string
	Method  string
	Kind    Kind
	Seq     uint64
	Ack     uint64
	ErrCode int32
	Body    []byte
}

// wireEnvelope is the fixed external frame schema. Integer keys keep the
// frame compact; the key assignment is part of the wire contract and must
// not change.
type wireEnvelope struct {
	Service string `cbor:"1,keyasint"`
	Method  string `cbor:"2,keyasint"`
	Kind    uint8  `cbor:"3,keyasint"`
	Seq     uint64 `cbor:"4,keyasint,omitempty"`
	Ack     uint64 `cbor:"5,keyasint,omitempty"`
	ErrCode int32  `cbor:"6,keyasint,omitempty"`
	Body    []byte `cbor:"7,keyasint,omitempty"`
}

// encMode uses Core Deterministic Encoding so the same logical frame always
// produces identical bytes. decMode accepts standard CBOR and ignores
// unknown fields for forward compatibility.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("protocol: CBOR encoder init: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("protocol: CBOR decoder init: " + err.Error())
	}
}

// Encode serializes an envelope into one wire frame.
func Encode(env Envelope) ([]byte, error) {
	return encMode.Marshal(wireEnvelope{
		Service: env.Service,
		Method:  env.Method,
		Kind:    uint8(env.Kind),
		Seq:     env.Seq,
		Ack:     env.Ack,
		ErrCode: env.ErrCode,
		Body:    env.Body,
	})
}

// Decode parses one wire frame. Any decode failure (or an envelope whose
// kind is outside the known set) is reported as ErrMalformedFrame; callers
// must treat that as non-fatal and keep the connection open.
func Decode(b []byte) (Envelope, error) {
	var w wireEnvelope
	if err := decMode.Unmarshal(b, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	k := Kind(w.Kind)
	if k != KindRequest && k != KindResponse && k != KindNotify {
		return Envelope{}, fmt.Errorf("%w: unknown kind %d", ErrMalformedFrame, w.Kind)
	}
	return Envelope{
		Service: w.Service,
		Method:  w.Method,
		Kind:    k,
		Seq:     w.Seq,
		Ack:     w.Ack,
		ErrCode: w.ErrCode,
		Body:    w.Body,
	}, nil
}

// MarshalBody encodes a request/reply body struct for use as Envelope.Body.
func MarshalBody(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// UnmarshalBody decodes an envelope body into a reply struct.
func UnmarshalBody(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return decMode.Unmarshal(b, v)
}
