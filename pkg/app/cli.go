package app

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/tws.go/pkg/bt"
	"github.com/robotalks/tws.go/pkg/evt"
	fx "github.com/robotalks/tws.go/pkg/framework"
	"github.com/robotalks/tws.go/pkg/status"
	"github.com/robotalks/tws.go/pkg/wws"
)

// MsgCommand on fx.TagCLI carries a protobuf status.Command.
const MsgCommand uint16 = 1

var (
	// ErrUnsupportedCommand indicates the command is unsupported.
	ErrUnsupportedCommand = errors.New("unsupported command")
	// ErrMissingArgs indicates the command needs more arguments.
	ErrMissingArgs = errors.New("missing arguments")
)

// SubmitCommand queues cmd to the kernel. It's safe to call from any
// goroutine, e.g. the MQTT client.
func SubmitCommand(sender fx.Sender, cmd *status.Command) error {
	data, err := proto.Marshal(cmd)
	if err != nil {
		return err
	}
	return sender.Send(fx.TagCLI, MsgCommand, data)
}

func (a *App) handleCLI(dc fx.DispatchContext, id uint16, payload []byte) {
	if id != MsgCommand {
		glog.Warningf("cli: unknown message %d", id)
		return
	}
	var cmd status.Command
	if err := proto.Unmarshal(payload, &cmd); err != nil {
		glog.Errorf("cli: decode: %v", err)
		return
	}
	glog.Infof("cli: %s %v", cmd.Name, cmd.Args)
	rep := &status.Reply{CorrelationId: cmd.CorrelationId}
	if err := a.exec(dc, &cmd); err != nil {
		glog.Warningf("cli: %s: %v", cmd.Name, err)
		rep.Error = err.Error()
	}
	rep.Status = a.Status(dc)
	if cmd.CorrelationId != "" && a.Reporter != nil {
		if err := a.Reporter.Reply(rep); err != nil {
			glog.Errorf("cli: reply: %v", err)
		}
	}
}

func (a *App) exec(dc fx.DispatchContext, cmd *status.Command) error {
	args := cmd.Args
	switch cmd.Name {
	case "status":
		return nil
	case "inject":
		in := cmd.Inject
		if in == nil {
			return ErrMissingArgs
		}
		if in.Tag > 0xff || in.Id > 0xffff {
			return fx.ErrInvalidTag
		}
		return dc.Send(fx.Tag(in.Tag), uint16(in.Id), in.Payload)
	case "event":
		n, err := uintArg(args, 0, 0xffff)
		if err != nil {
			return err
		}
		return dc.Send(fx.TagEvt, MsgUserEvent, encodeEvent(evt.Event(n)))
	case "connect-last":
		a.Conn.UserConnectLast()
	case "disconnect":
		a.Conn.Disconnect()
	case "role-switch":
		if !a.WWS.IsConnectedMaster() {
			return wws.ErrNotConnected
		}
		return a.Stack.TWSRoleSwitch()
	case "pair":
		return a.WWS.StartPair()
	case "reset-pdl":
		if a.WWS.IsSlave() {
			return a.WWS.SendPDLClearReq()
		}
		if err := a.clearPDL(); err != nil {
			return err
		}
		return a.peer(a.WWS.SendResetPDL())
	case "battery":
		n, err := uintArg(args, 0, 100)
		if err != nil {
			return err
		}
		a.Device.SetBattery(uint8(n))
		return a.peer(a.WWS.SendBattery(dc, uint8(n)))
	case "charging":
		on, err := boolArg(args)
		if err != nil {
			return err
		}
		a.Device.SetCharging(on)
		return a.peer(a.WWS.SendCharger(dc, on))
	case "in-ear":
		on, err := boolArg(args)
		if err != nil {
			return err
		}
		a.Device.SetInEar(on)
		return a.peer(a.WWS.SendInEar(dc, a.Device.InEarEnabled(), on))
	case "in-ear-detect":
		on, err := boolArg(args)
		if err != nil {
			return err
		}
		if a.WWS.IsSlave() {
			return a.WWS.SendInEarEnableReq(on)
		}
		a.Device.SetInEarEnabled(on)
		return a.peer(a.WWS.SendInEar(dc, on, a.Device.InEar()))
	case "box":
		s, err := boxArg(args)
		if err != nil {
			return err
		}
		a.Device.SetBoxState(s)
		return a.peer(a.WWS.SendBoxState(s))
	case "game-mode":
		on, err := boolArg(args)
		if err != nil {
			return err
		}
		a.Device.SetGameMode(on)
		return a.peer(a.WWS.SendGameMode(on))
	case "anc-level", "transparency-level":
		n, err := uintArg(args, 0, 0xff)
		if err != nil {
			return err
		}
		if cmd.Name == "anc-level" {
			a.Device.SetANCLevel(uint8(n))
			return a.peer(a.WWS.SendANCLevel(uint8(n)))
		}
		a.Device.SetTransparencyLevel(uint8(n))
		return a.peer(a.WWS.SendTransparencyLevel(uint8(n)))
	case "key":
		if len(args) > 0 && args[0] == "reset" {
			a.Device.ResetKeys()
			return a.peer(a.WWS.SendResetCusKey())
		}
		keyType, err := uintArg(args, 0, 0xff)
		if err != nil {
			return err
		}
		mask, err := uintArg(args, 1, 0xffff)
		if err != nil {
			return err
		}
		event, err := uintArg(args, 2, 0xffff)
		if err != nil {
			return err
		}
		a.Device.AddKey(uint8(keyType), uint16(mask), uint16(event))
		return a.peer(a.WWS.SendSetCusKey(uint8(keyType), uint16(mask), uint16(event)))
	case "volume":
		call, err := uintArg(args, 0, 0xff)
		if err != nil {
			return err
		}
		music, err := uintArg(args, 1, 0xff)
		if err != nil {
			return err
		}
		a.Device.SetCallVolume(uint8(call))
		a.Device.SetMusicVolume(uint8(music))
		if a.WWS.IsSlave() {
			return a.WWS.SendVolSetReq(uint8(call), uint8(music))
		}
		return a.peer(a.WWS.SendVolume(uint8(call), uint8(music)))
	case "listen-mode":
		n, err := uintArg(args, 0, uint64(bt.ListenTransparency))
		if err != nil {
			return err
		}
		mode := bt.ListenMode(n)
		a.Device.SetListenMode(mode)
		if a.WWS.IsSlave() {
			return a.WWS.SendListenModeSetReq(mode)
		}
		return a.peer(a.WWS.SendListenMode(mode))
	case "power":
		on, err := boolArg(args)
		if err != nil {
			return err
		}
		if on {
			return dc.Send(fx.TagBT, bt.EvtPowerOn, nil)
		}
		return dc.Send(fx.TagBT, bt.EvtPowerOff, nil)
	case "peer":
		if len(args) == 0 {
			return ErrMissingArgs
		}
		data, err := proto.Marshal(&status.Command{Name: args[0], Args: args[1:], Inject: cmd.Inject})
		if err != nil {
			return err
		}
		return a.WWS.SendRemoteMsg(fx.TagCLI, MsgCommand, data)
	default:
		return ErrUnsupportedCommand
	}
	return nil
}

// peer ignores a send failure when no peer is connected: the local
// change still applies.
func (a *App) peer(err error) error {
	if err == wws.ErrNotConnected {
		return nil
	}
	return err
}

func uintArg(args []string, n int, max uint64) (uint64, error) {
	if len(args) <= n {
		return 0, ErrMissingArgs
	}
	v, err := strconv.ParseUint(args[n], 0, 64)
	if err != nil {
		return 0, err
	}
	if v > max {
		return 0, fmt.Errorf("%d out of range [0, %d]", v, max)
	}
	return v, nil
}

func boxArg(args []string) (bt.BoxState, error) {
	if len(args) == 0 {
		return bt.BoxUnknown, ErrMissingArgs
	}
	switch args[0] {
	case "open", "opened":
		return bt.BoxOpened, nil
	case "closed", "close":
		return bt.BoxClosed, nil
	}
	return bt.BoxUnknown, fmt.Errorf("open|closed expected, got %q", args[0])
}

func boolArg(args []string) (bool, error) {
	if len(args) == 0 {
		return false, ErrMissingArgs
	}
	switch args[0] {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch %q", args[0])
}
