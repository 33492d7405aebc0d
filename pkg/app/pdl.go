package app

import (
	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/bt"
)

// MaxPhones bounds the paired device list.
const MaxPhones = 8

// PDL is the in-memory paired device list, most recent first. It's
// owned by the kernel loop.
type PDL struct {
	Max int

	addrs []bt.Addr
}

// NewPDL creates a PDL holding up to max phones.
func NewPDL(max int) *PDL {
	return &PDL{Max: max}
}

// Add records addr as the most recent phone.
func (p *PDL) Add(addr bt.Addr) {
	if addr.IsZero() {
		return
	}
	for n, a := range p.addrs {
		if a == addr {
			copy(p.addrs[1:n+1], p.addrs[:n])
			p.addrs[0] = addr
			return
		}
	}
	glog.V(2).Infof("pdl: add %s", addr)
	p.addrs = append([]bt.Addr{addr}, p.addrs...)
	if p.Max > 0 && len(p.addrs) > p.Max {
		p.addrs = p.addrs[:p.Max]
	}
}

// Clear forgets all phones.
func (p *PDL) Clear() {
	glog.Infof("pdl: cleared %d phones", len(p.addrs))
	p.addrs = nil
}

// First returns the most recent phone.
func (p *PDL) First() (bt.Addr, bool) {
	if len(p.addrs) == 0 {
		return bt.Addr{}, false
	}
	return p.addrs[0], true
}

// Empty reports whether no phone is known.
func (p *PDL) Empty() bool {
	return len(p.addrs) == 0
}

// Len returns the number of phones.
func (p *PDL) Len() int {
	return len(p.addrs)
}

// List returns a copy of the phones.
func (p *PDL) List() []bt.Addr {
	return append([]bt.Addr(nil), p.addrs...)
}
