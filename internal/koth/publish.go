package koth

import (
	"strconv"

	"kothmode/internal/protocol"
)

// Gate passes a value through only when it differs from the last value it
// passed. Used to keep observer traffic change-only.
type Gate[T comparable] struct {
	last T
	sent bool
}

// Put reports whether v should be transmitted, recording it if so.
func (g *Gate[T]) Put(v T) bool {
	if g.sent && g.last == v {
		return false
	}
	g.last = v
	g.sent = true
	return true
}

// StatePublisher turns match snapshots into STATE messages carrying only
// the fields that changed since the previous message for this session.
// Each field is gated independently.
type StatePublisher struct {
	king       Gate[int32]
	kingSince  Gate[int64]
	contesting Gate[int32]
	deadline   Gate[int64]
	capturing  Gate[bool]
	possession map[int32]*Gate[int64]
}

func NewStatePublisher() *StatePublisher {
	return &StatePublisher{possession: map[int32]*Gate[int64]{}}
}

// Diff builds the next STATE message. ok is false when nothing changed and
// no message should be sent.
func (p *StatePublisher) Diff(s State) (msg protocol.StateMsg, ok bool) {
	msg = protocol.StateMsg{Type: protocol.TypeState, Tick: s.Tick}

	if p.king.Put(s.King) {
		v := s.King
		msg.King = &v
		ok = true
	}
	if p.kingSince.Put(s.KingSince) {
		v := s.KingSince
		msg.KingSince = &v
		ok = true
	}
	if p.contesting.Put(s.Contesting) {
		v := s.Contesting
		msg.Contesting = &v
		ok = true
	}
	if p.deadline.Put(s.Deadline) {
		v := s.Deadline
		msg.Deadline = &v
		ok = true
	}
	if p.capturing.Put(s.Capturing) {
		v := s.Capturing
		msg.Capturing = &v
		ok = true
	}
	for id, t := range s.Possession {
		g := p.possession[id]
		if g == nil {
			g = &Gate[int64]{}
			p.possession[id] = g
		}
		if g.Put(t) {
			if msg.Possession == nil {
				msg.Possession = map[string]int64{}
			}
			msg.Possession[strconv.FormatInt(int64(id), 10)] = t
			ok = true
		}
	}
	return msg, ok
}
