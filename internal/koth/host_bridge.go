package koth

import (
	"encoding/json"

	"kothmode/internal/protocol"
)

// hostBridge implements Host over the engine websocket session: positions
// come from the latest FRAME, side effects leave as CMD messages. Only the
// engine goroutine touches it.
type hostBridge struct {
	positions map[int32][2]float64
	out       chan []byte // nil while no engine session is attached
}

func newHostBridge() *hostBridge {
	return &hostBridge{positions: map[int32][2]float64{}}
}

func (h *hostBridge) attach(out chan []byte) { h.out = out }

// setPositions replaces the position cache with the frame's fresh readings.
func (h *hostBridge) setPositions(units []protocol.UnitPos) {
	h.positions = make(map[int32][2]float64, len(units))
	for _, u := range units {
		h.positions[u.ID] = [2]float64{u.X, u.Z}
	}
}

func (h *hostBridge) UnitPosition(unitID int32) (x, z float64, ok bool) {
	p, ok := h.positions[unitID]
	return p[0], p[1], ok
}

func (h *hostBridge) Demolish(unitID int32) {
	h.cmd(protocol.CmdMsg{Type: protocol.TypeCmd, Cmd: protocol.CmdDemolish, UnitID: unitID})
}

func (h *hostBridge) SetGlobalVision(allianceID int32, on bool) {
	verb := protocol.CmdVisionRevoke
	if on {
		verb = protocol.CmdVisionGrant
	}
	h.cmd(protocol.CmdMsg{Type: protocol.TypeCmd, Cmd: verb, AllianceID: allianceID})
}

func (h *hostBridge) ScaleHealth(unitID int32, factor float64) {
	h.cmd(protocol.CmdMsg{Type: protocol.TypeCmd, Cmd: protocol.CmdScaleHealth, UnitID: unitID, Factor: factor})
}

func (h *hostBridge) GameOver(allianceID int32) {
	h.cmd(protocol.CmdMsg{Type: protocol.TypeCmd, Cmd: protocol.CmdGameOver, AllianceID: allianceID})
}

func (h *hostBridge) cmd(m protocol.CmdMsg) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	h.send(b)
}

func (h *hostBridge) send(b []byte) {
	if h.out == nil {
		return
	}
	select {
	case h.out <- b:
	default:
	}
}
