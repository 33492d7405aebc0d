package sh

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	fx "github.com/robotalks/tws.go/pkg/framework"
	"github.com/robotalks/tws.go/pkg/status"
)

func deviceCmd(name, help string, aliases ...string) *ishell.Cmd {
	return &ishell.Cmd{
		Name:    name,
		Aliases: aliases,
		Help:    help,
		Func: MustBeSelected(func(c *ishell.Context) {
			DoCommand(c, &status.Command{Name: name, Args: c.Args})
		}),
	}
}

// ParseInject parses TAG ID [HEX]. TAG is a name or a number.
func ParseInject(args []string) (*status.Inject, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("TAG ID [HEX] expected")
	}
	tag, ok := fx.ParseTag(args[0])
	if !ok {
		n, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil || !fx.Tag(n).Valid() {
			return nil, fmt.Errorf("invalid tag %q", args[0])
		}
		tag = fx.Tag(n)
	}
	id, err := strconv.ParseUint(args[1], 0, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %v", args[1], err)
	}
	in := &status.Inject{Tag: uint32(tag), Id: uint32(id)}
	if len(args) == 3 {
		if in.Payload, err = hex.DecodeString(args[2]); err != nil {
			return nil, fmt.Errorf("invalid payload: %v", err)
		}
	}
	return in, nil
}

var (
	// InjectCmd injects a raw kernel message.
	InjectCmd = ishell.Cmd{
		Name:    "inject",
		Aliases: []string{"i"},
		Help:    "TAG ID [HEX]",
		Func: MustBeSelected(func(c *ishell.Context) {
			in, err := ParseInject(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			DoCommand(c, &status.Command{Name: "inject", Inject: in})
		}),
	}

	// PeerCmd runs a command on the other earbud through the earbud link.
	PeerCmd = ishell.Cmd{
		Name: "peer",
		Help: "COMMAND [ARGS...]",
		Func: MustBeSelected(func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("COMMAND expected"))
				return
			}
			cmd := &status.Command{Name: "peer", Args: c.Args}
			if c.Args[0] == "inject" {
				in, err := ParseInject(c.Args[1:])
				if err != nil {
					c.Err(err)
					return
				}
				cmd.Args, cmd.Inject = c.Args[:1], in
			}
			DoCommand(c, cmd)
		}),
	}
)

func init() {
	AddCmds(
		deviceCmd("status", "", "s"),
		&InjectCmd,
		deviceCmd("event", "N"),
		deviceCmd("connect-last", "", "cl"),
		deviceCmd("disconnect", ""),
		deviceCmd("role-switch", "", "rs"),
		deviceCmd("pair", ""),
		deviceCmd("reset-pdl", ""),
		deviceCmd("battery", "LEVEL"),
		deviceCmd("charging", "on|off"),
		deviceCmd("in-ear", "on|off"),
		deviceCmd("in-ear-detect", "on|off"),
		deviceCmd("box", "open|closed"),
		deviceCmd("game-mode", "on|off", "game"),
		deviceCmd("anc-level", "LEVEL"),
		deviceCmd("transparency-level", "LEVEL"),
		deviceCmd("key", "TYPE MASK EVENT | reset"),
		deviceCmd("volume", "CALL MUSIC", "vol"),
		deviceCmd("listen-mode", "MODE"),
		deviceCmd("power", "on|off"),
		&PeerCmd,
	)
}
