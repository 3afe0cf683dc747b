package koth

// Unit lifecycle and team-death entry points. The host adapter translates
// engine events into these calls; they run synchronously between frames.

// OnUnitFinished tracks a newly finished (or given-in) mobile unit if its
// def is capture-eligible, and applies the configured health multiplier.
func (m *Match) OnUnitFinished(unitID, allianceID int32, defName string) {
	if !m.opts.Enabled || !m.eligible[defName] {
		return
	}
	m.units[unitID] = allianceID
	if m.opts.HealthMult != 1 {
		m.host.ScaleHealth(unitID, m.opts.HealthMult)
	}
}

// OnUnitGiven reassigns a tracked unit to its new alliance. Untracked units
// are ignored.
func (m *Match) OnUnitGiven(unitID, newAllianceID int32) {
	if _, ok := m.units[unitID]; ok {
		m.units[unitID] = newAllianceID
	}
}

// OnUnitDestroyed drops the unit from tracking, whether it was a capture
// unit or a hill building.
func (m *Match) OnUnitDestroyed(unitID int32) {
	delete(m.units, unitID)
	delete(m.hillBuildings, unitID)
}

// OnBuildingFinished records buildings the king raises inside the hill, so
// they can be demolished when the king falls.
func (m *Match) OnBuildingFinished(unitID, allianceID int32, x, z, sizeX, sizeZ float64) {
	if !m.opts.Enabled {
		return
	}
	if allianceID == m.king && m.hill.ContainsFootprint(x, z, sizeX, sizeZ) {
		m.hillBuildings[unitID] = struct{}{}
	}
}

// OnTeamDied marks a team dead. When an alliance's last team dies the
// alliance is eliminated: an eliminated king is dethroned on the spot,
// bypassing the decay deadline, and the alliance's possession is replaced
// with the disqualification sentinel, after which it never changes again.
func (m *Match) OnTeamDied(tick int64, teamID, allianceID int32) {
	as := m.alliances[allianceID]
	if as == nil || as.eliminated {
		return
	}
	as.teams[teamID] = false
	for _, alive := range as.teams {
		if alive {
			return
		}
	}
	as.eliminated = true

	if m.king == allianceID {
		m.dethrone(tick)
	}
	if m.contesting == allianceID {
		m.contesting = NoAlliance
	}
	m.possession[allianceID] = disqualified
	if m.logger != nil {
		m.logger.Printf("tick %d: alliance %d eliminated, disqualified", tick, allianceID)
	}
	m.emit(tick, EventEliminated, allianceID)
}
