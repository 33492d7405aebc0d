package status

import (
	"github.com/golang/protobuf/proto"
)

// Type IDs of the messages carried in an Envelope.
const (
	DeviceStatusTypeID uint32 = 0x00010001
	EventReportTypeID  uint32 = 0x00010002
	CommandTypeID      uint32 = 0x00020001
	ReplyTypeID        uint32 = 0x00028001
)

// DeviceStatus is the retained snapshot of one earbud.
type DeviceStatus struct {
	DeviceId     string `protobuf:"bytes,1,opt,name=device_id,json=deviceId,proto3" json:"device_id,omitempty"`
	Channel      string `protobuf:"bytes,2,opt,name=channel,proto3" json:"channel,omitempty"`
	Role         string `protobuf:"bytes,3,opt,name=role,proto3" json:"role,omitempty"`
	TwsState     string `protobuf:"bytes,4,opt,name=tws_state,json=twsState,proto3" json:"tws_state,omitempty"`
	SysState     string `protobuf:"bytes,5,opt,name=sys_state,json=sysState,proto3" json:"sys_state,omitempty"`
	Battery      uint32 `protobuf:"varint,6,opt,name=battery,proto3" json:"battery,omitempty"`
	PeerBattery  uint32 `protobuf:"varint,7,opt,name=peer_battery,json=peerBattery,proto3" json:"peer_battery,omitempty"`
	InEar        bool   `protobuf:"varint,8,opt,name=in_ear,json=inEar,proto3" json:"in_ear,omitempty"`
	PeerInEar    bool   `protobuf:"varint,9,opt,name=peer_in_ear,json=peerInEar,proto3" json:"peer_in_ear,omitempty"`
	Charging     bool   `protobuf:"varint,10,opt,name=charging,proto3" json:"charging,omitempty"`
	PeerCharging bool   `protobuf:"varint,11,opt,name=peer_charging,json=peerCharging,proto3" json:"peer_charging,omitempty"`
	CallVolume   uint32 `protobuf:"varint,12,opt,name=call_volume,json=callVolume,proto3" json:"call_volume,omitempty"`
	MusicVolume  uint32 `protobuf:"varint,13,opt,name=music_volume,json=musicVolume,proto3" json:"music_volume,omitempty"`
	ListenMode   string `protobuf:"bytes,14,opt,name=listen_mode,json=listenMode,proto3" json:"listen_mode,omitempty"`
	PhoneRssi    int32  `protobuf:"varint,15,opt,name=phone_rssi,json=phoneRssi,proto3" json:"phone_rssi,omitempty"`
	PeerRssi     int32  `protobuf:"varint,16,opt,name=peer_rssi,json=peerRssi,proto3" json:"peer_rssi,omitempty"`
	RetryCount   uint32 `protobuf:"varint,17,opt,name=retry_count,json=retryCount,proto3" json:"retry_count,omitempty"`
	PairedPhones uint32 `protobuf:"varint,18,opt,name=paired_phones,json=pairedPhones,proto3" json:"paired_phones,omitempty"`
	Timestamp    int64  `protobuf:"varint,19,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

func (m *DeviceStatus) Reset()         { *m = DeviceStatus{} }
func (m *DeviceStatus) String() string { return proto.CompactTextString(m) }
func (*DeviceStatus) ProtoMessage()    {}

// TypeID implements Message.
func (*DeviceStatus) TypeID() uint32 { return DeviceStatusTypeID }

// EventReport is published for every system event.
type EventReport struct {
	DeviceId  string `protobuf:"bytes,1,opt,name=device_id,json=deviceId,proto3" json:"device_id,omitempty"`
	Event     uint32 `protobuf:"varint,2,opt,name=event,proto3" json:"event,omitempty"`
	Name      string `protobuf:"bytes,3,opt,name=name,proto3" json:"name,omitempty"`
	FromPeer  bool   `protobuf:"varint,4,opt,name=from_peer,json=fromPeer,proto3" json:"from_peer,omitempty"`
	Timestamp int64  `protobuf:"varint,5,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

func (m *EventReport) Reset()         { *m = EventReport{} }
func (m *EventReport) String() string { return proto.CompactTextString(m) }
func (*EventReport) ProtoMessage()    {}

// TypeID implements Message.
func (*EventReport) TypeID() uint32 { return EventReportTypeID }

// Inject is a raw kernel message.
type Inject struct {
	Tag     uint32 `protobuf:"varint,1,opt,name=tag,proto3" json:"tag,omitempty"`
	Id      uint32 `protobuf:"varint,2,opt,name=id,proto3" json:"id,omitempty"`
	Payload []byte `protobuf:"bytes,3,opt,name=payload,proto3" json:"payload,omitempty"`
}

func (m *Inject) Reset()         { *m = Inject{} }
func (m *Inject) String() string { return proto.CompactTextString(m) }
func (*Inject) ProtoMessage()    {}

// Command is sent by the shell to an earbud.
type Command struct {
	CorrelationId string   `protobuf:"bytes,1,opt,name=correlation_id,json=correlationId,proto3" json:"correlation_id,omitempty"`
	Name          string   `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	Args          []string `protobuf:"bytes,3,rep,name=args,proto3" json:"args,omitempty"`
	Inject        *Inject  `protobuf:"bytes,4,opt,name=inject,proto3" json:"inject,omitempty"`
}

func (m *Command) Reset()         { *m = Command{} }
func (m *Command) String() string { return proto.CompactTextString(m) }
func (*Command) ProtoMessage()    {}

// TypeID implements Message.
func (*Command) TypeID() uint32 { return CommandTypeID }

// Reply answers a Command with the same correlation id.
type Reply struct {
	CorrelationId string        `protobuf:"bytes,1,opt,name=correlation_id,json=correlationId,proto3" json:"correlation_id,omitempty"`
	Error         string        `protobuf:"bytes,2,opt,name=error,proto3" json:"error,omitempty"`
	Status        *DeviceStatus `protobuf:"bytes,3,opt,name=status,proto3" json:"status,omitempty"`
}

func (m *Reply) Reset()         { *m = Reply{} }
func (m *Reply) String() string { return proto.CompactTextString(m) }
func (*Reply) ProtoMessage()    {}

// TypeID implements Message.
func (*Reply) TypeID() uint32 { return ReplyTypeID }

// IsReply determines if the type id is a reply.
func IsReply(typeID uint32) bool {
	return typeID&0x8000 != 0
}
