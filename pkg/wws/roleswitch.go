package wws

import (
	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/bt"
	fx "github.com/robotalks/tws.go/pkg/framework"
)

// SwitchReason is what made the engine reconsider the roles.
type SwitchReason uint8

// Role switch reasons.
const (
	SwitchCharging SwitchReason = iota
	SwitchPeerCharging
	SwitchBattery
	SwitchPeerBattery
	SwitchInEar
	SwitchPeerInEar
	SwitchRSSI
	SwitchTimer
	SwitchConnected
)

var switchReasonNames = [...]string{
	"charging", "peer-charging", "battery", "peer-battery",
	"in-ear", "peer-in-ear", "rssi", "timer", "connected",
}

func (r SwitchReason) String() string {
	if int(r) < len(switchReasonNames) {
		return switchReasonNames[r]
	}
	return "unknown"
}

// Verdict is the outcome of a RoleSwitchPolicy.
type Verdict uint8

// Verdicts.
const (
	// Pass leaves the decision to the next policy.
	Pass Verdict = iota
	// Hold keeps the current roles and stops the chain.
	Hold
	// Switch hands the phone link to the peer.
	Switch
)

func (v Verdict) String() string {
	switch v {
	case Hold:
		return "hold"
	case Switch:
		return "switch"
	}
	return "pass"
}

// RoleSwitchPolicy decides on a role switch.
type RoleSwitchPolicy interface {
	Evaluate(e *Engine, dc fx.DispatchContext, reason SwitchReason) Verdict
}

// PolicyFunc is the func form of RoleSwitchPolicy.
type PolicyFunc func(e *Engine, dc fx.DispatchContext, reason SwitchReason) Verdict

// Evaluate implements RoleSwitchPolicy.
func (f PolicyFunc) Evaluate(e *Engine, dc fx.DispatchContext, reason SwitchReason) Verdict {
	return f(e, dc, reason)
}

var (
	chargingPolicy = PolicyFunc(evalCharging)
	inEarPolicy    = PolicyFunc(evalInEar)
	rssiPolicy     = PolicyFunc(evalRSSI)
	batteryPolicy  = PolicyFunc(evalBattery)
)

// Policies returns the chain selected by the strategy. Charging always
// comes first.
func (s RoleSwitchStrategy) Policies() []RoleSwitchPolicy {
	switch s {
	case StrategyNone:
		return []RoleSwitchPolicy{chargingPolicy}
	case StrategyInEar:
		return []RoleSwitchPolicy{chargingPolicy, inEarPolicy}
	case StrategyBattery:
		return []RoleSwitchPolicy{chargingPolicy, batteryPolicy}
	case StrategyAll:
		return []RoleSwitchPolicy{chargingPolicy, inEarPolicy, rssiPolicy, batteryPolicy}
	}
	return []RoleSwitchPolicy{chargingPolicy, rssiPolicy}
}

// SetPolicies replaces the chain built from Config.RoleSwitch.
func (e *Engine) SetPolicies(policies ...RoleSwitchPolicy) {
	e.policies = policies
}

func (e *Engine) chain() []RoleSwitchPolicy {
	if e.policies == nil {
		e.policies = e.Config.RoleSwitch.Policies()
	}
	return e.policies
}

func (e *Engine) batterySwitching() bool {
	s := e.Config.RoleSwitch
	return s == StrategyBattery || s == StrategyAll
}

func (e *Engine) rssiSwitching() bool {
	s := e.Config.RoleSwitch
	return s == StrategyRSSI || s == StrategyAll
}

// TriggerRoleSwitch runs the policy chain and switches roles when a
// policy asks for it. Only a connected master with the phone connected
// decides, and never during a firmware transfer.
func (e *Engine) TriggerRoleSwitch(dc fx.DispatchContext, reason SwitchReason) {
	if !e.IsConnectedMaster() {
		return
	}
	if e.OTA != nil && e.OTA.Running() {
		glog.V(2).Info("wws: role switch skipped during ota")
		return
	}
	if e.Stack.SysState() < bt.Connected {
		return
	}
	verdict := Pass
	for _, p := range e.chain() {
		if verdict = p.Evaluate(e, dc, reason); verdict != Pass {
			break
		}
	}
	glog.V(2).Infof("wws: role switch %s: %s", reason, verdict)
	if verdict == Switch {
		e.switchNow(dc)
	}
}

func (e *Engine) withinAntiShake(dc fx.DispatchContext) bool {
	return dc.Time().Before(e.ctx.LastRoleSwitch.Add(e.Config.AntiShake))
}

func (e *Engine) reschedule(dc fx.DispatchContext) Verdict {
	dc.Cancel(fx.TagWWS, MsgTriggerRoleSwitch)
	e.schedule(dc, MsgTriggerRoleSwitch, e.Config.AntiShake)
	return Hold
}

func (e *Engine) switchNow(dc fx.DispatchContext) {
	dc.Cancel(fx.TagWWS, MsgTriggerRoleSwitch)
	glog.Infof("wws: switching role, phone %d peer %d", e.Stack.LinkQuality().PhoneRSSI, e.ctx.Peer.PhoneRSSI)
	if err := e.Stack.TWSRoleSwitch(); err != nil {
		glog.Errorf("wws: role switch: %v", err)
		return
	}
	e.ctx.LastRoleSwitch = dc.Time()
}

func evalCharging(e *Engine, dc fx.DispatchContext, reason SwitchReason) Verdict {
	local, peer := e.Local.Charging(), e.ctx.Peer.Charging
	if local && !peer {
		if e.withinAntiShake(dc) {
			return e.reschedule(dc)
		}
		if reason == SwitchCharging || reason == SwitchTimer {
			return Switch
		}
		return e.reschedule(dc)
	}
	if local || peer {
		return Hold
	}
	return Pass
}

func evalInEar(e *Engine, dc fx.DispatchContext, reason SwitchReason) Verdict {
	local, peer := e.Local.InEar(), e.ctx.Peer.InEar
	switch {
	case local && !peer:
		return Hold
	case !local && peer:
		if e.withinAntiShake(dc) {
			return e.reschedule(dc)
		}
		switch reason {
		case SwitchTimer:
			return Switch
		case SwitchInEar, SwitchPeerInEar:
			return e.reschedule(dc)
		}
		return Hold
	}
	return Pass
}

func evalRSSI(e *Engine, dc fx.DispatchContext, reason SwitchReason) Verdict {
	if reason != SwitchRSSI {
		return Pass
	}
	q := e.Stack.LinkQuality()
	switch {
	case q.PhoneRSSI > e.Config.BadRSSI, q.PeerRSSI > e.Config.BadRSSI:
		return Hold
	case e.ctx.Peer.PhoneRSSI < e.Config.GoodRSSI:
		return Hold
	case e.withinAntiShake(dc):
		return Hold
	}
	return Switch
}

func evalBattery(e *Engine, dc fx.DispatchContext, reason SwitchReason) Verdict {
	if e.Local.Battery() > e.Config.BatteryLow || e.ctx.Peer.Battery < e.Config.BatteryHigh {
		return Pass
	}
	if e.withinAntiShake(dc) {
		return e.reschedule(dc)
	}
	if reason == SwitchTimer {
		return Switch
	}
	return e.reschedule(dc)
}

func (e *Engine) detectRSSI(dc fx.DispatchContext) {
	if !e.ctx.RSSIDetectEnabled {
		return
	}
	q := e.Stack.LinkQuality()
	if e.rssiSwitching() && e.IsConnectedMaster() &&
		q.PhoneRSSI <= e.Config.BadRSSI && q.PeerRSSI <= e.Config.BadRSSI &&
		q.PhoneRSSI != bt.RSSIInvalid && q.PeerRSSI != bt.RSSIInvalid {
		glog.V(2).Infof("wws: weak phone %d peer %d, asking peer", q.PhoneRSSI, q.PeerRSSI)
		if err := e.sendGetRSSIReq(); err != nil {
			glog.Errorf("wws: rssi request: %v", err)
		}
	}
	interval := e.Config.RSSIDetectInterval
	if q.PhoneRSSI < e.Config.GoodRSSI {
		interval /= 2
	}
	e.schedule(dc, MsgRSSIDetect, interval)
}
