package koth

// Evaluate advances the ownership state machine at the given tick. The
// caller gates invocations to the configured cadence; Evaluate itself is
// cadence-agnostic. After the match ends it is a no-op.
func (m *Match) Evaluate(tick int64) {
	if m.over || !m.opts.Enabled {
		return
	}

	occ := m.alliancesInHill()

	// Contest direction. With a king, its own presence decides: holding
	// while inside, decaying while away, co-occupants notwithstanding.
	// Without a king, only a sole occupant advances, and only when no
	// earlier contest is still winding down for somebody else.
	dir := false
	if m.king != NoAlliance {
		dir = occ[m.king]
	} else if len(occ) == 1 {
		var sole int32
		for id := range occ {
			sole = id
		}
		if tick >= m.contestDeadline || sole == m.contesting {
			dir = true
			m.contesting = sole
		}
	}

	if dir != m.capturing {
		// Reversal resumes from partial progress: decaying a half-done
		// capture takes the half already elapsed, not the full delay.
		remaining := m.contestDeadline - tick
		if remaining < 0 {
			remaining = 0
		}
		m.contestDeadline = tick + m.opts.CaptureTicks - remaining
		m.capturing = dir
	}

	if m.king != NoAlliance && m.winTick >= 0 && tick >= m.winTick {
		m.win(tick, m.king)
		return
	}

	if tick >= m.contestDeadline {
		switch {
		case m.king != NoAlliance && !m.capturing:
			m.dethrone(tick)
		case m.king == NoAlliance && m.capturing && m.contesting != NoAlliance:
			m.crown(tick, m.contesting)
		}
	}
}

// alliancesInHill reads fresh positions for every tracked unit and collects
// the alliances with at least one unit inside the hill. Eliminated
// alliances never count.
func (m *Match) alliancesInHill() map[int32]bool {
	occ := map[int32]bool{}
	for id, alliance := range m.units {
		if as := m.alliances[alliance]; as != nil && as.eliminated {
			continue
		}
		x, z, ok := m.host.UnitPosition(id)
		if !ok {
			continue
		}
		if m.hill.ContainsPoint(x, z) {
			occ[alliance] = true
		}
	}
	return occ
}

func (m *Match) crown(tick int64, allianceID int32) {
	m.king = allianceID
	m.kingStartTick = tick
	m.contesting = NoAlliance
	m.winTick = tick + m.opts.WinTicks - m.possession[allianceID]
	if m.opts.KingVision {
		m.host.SetGlobalVision(allianceID, true)
	}
	if m.logger != nil {
		m.logger.Printf("tick %d: alliance %d crowned, win tick %d", tick, allianceID, m.winTick)
	}
	m.emit(tick, EventCrowned, allianceID)
}

func (m *Match) dethrone(tick int64) {
	prev := m.king
	if m.possession[prev] >= 0 {
		m.possession[prev] += tick - m.kingStartTick
	}
	if m.opts.KingVision {
		m.host.SetGlobalVision(prev, false)
	}
	for id := range m.hillBuildings {
		m.host.Demolish(id)
	}
	m.hillBuildings = map[int32]struct{}{}

	m.king = NoAlliance
	m.kingStartTick = tick
	m.winTick = -1
	m.contesting = NoAlliance
	// Elimination dethrones mid-hold, with capturing still true and the
	// deadline long elapsed. Reset both so the next contest starts from a
	// full capture delay instead of inheriting the stale deadline.
	m.capturing = false
	m.contestDeadline = tick
	if m.logger != nil {
		m.logger.Printf("tick %d: alliance %d dethroned", tick, prev)
	}
	m.emit(tick, EventDethroned, prev)
}

func (m *Match) win(tick int64, allianceID int32) {
	if m.possession[allianceID] >= 0 {
		m.possession[allianceID] += tick - m.kingStartTick
		m.kingStartTick = tick
	}
	m.over = true
	m.winner = allianceID
	m.host.GameOver(allianceID)
	if m.logger != nil {
		m.logger.Printf("tick %d: alliance %d wins", tick, allianceID)
	}
	m.emit(tick, EventWin, allianceID)
}
