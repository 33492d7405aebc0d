// Package status carries earbud status, events and shell commands over
// MQTT as protobuf envelopes.
package status

import (
	"fmt"

	"github.com/golang/protobuf/proto"
)

// Message can be carried in an Envelope.
type Message interface {
	proto.Message
	TypeID() uint32
}

// ErrUnknownType indicates unknown type id.
type ErrUnknownType struct {
	TypeID uint32
}

// Error implements error.
func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown type: %x", e.TypeID)
}

// MessageTypes maps type IDs to constructors.
var MessageTypes = map[uint32]func() Message{
	DeviceStatusTypeID: func() Message { return &DeviceStatus{} },
	EventReportTypeID:  func() Message { return &EventReport{} },
	CommandTypeID:      func() Message { return &Command{} },
	ReplyTypeID:        func() Message { return &Reply{} },
}

// Envelope wraps a message with type information.
type Envelope struct {
	TypeId  uint32 `protobuf:"varint,1,opt,name=type_id,json=typeId,proto3" json:"type_id,omitempty"`
	Message []byte `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *Envelope) Reset()         { *m = Envelope{} }
func (m *Envelope) String() string { return proto.CompactTextString(m) }
func (*Envelope) ProtoMessage()    {}

// EnvelopeFrom wraps msg.
func EnvelopeFrom(msg Message) (*Envelope, error) {
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return &Envelope{TypeId: msg.TypeID(), Message: data}, nil
}

// Decode decodes the envelope into actual message.
func (e *Envelope) Decode() (Message, error) {
	newMsg, ok := MessageTypes[e.TypeId]
	if !ok {
		return nil, &ErrUnknownType{TypeID: e.TypeId}
	}
	msg := newMsg()
	if err := proto.Unmarshal(e.Message, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode encodes the Envelope to bytes.
func (e *Envelope) Encode() ([]byte, error) {
	return proto.Marshal(e)
}

// Encode wraps msg and encodes the envelope.
func Encode(msg Message) ([]byte, error) {
	env, err := EnvelopeFrom(msg)
	if err != nil {
		return nil, err
	}
	return env.Encode()
}

// Decode decodes bytes of an Envelope into the message.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := proto.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return env.Decode()
}
