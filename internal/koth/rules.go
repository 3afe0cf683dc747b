package koth

// AllowBuild is the build-command admission check. When building outside
// start boxes is disallowed, a placement passes only if its footprint lies
// fully inside the alliance's start region, or inside the hill while that
// alliance is king.
func (m *Match) AllowBuild(allianceID int32, x, z, sizeX, sizeZ float64) bool {
	if !m.opts.Enabled || m.opts.BuildOutsideBoxes {
		return true
	}
	if start, ok := m.starts[allianceID]; ok && start.ContainsFootprint(x, z, sizeX, sizeZ) {
		return true
	}
	if m.king == allianceID && m.hill.ContainsFootprint(x, z, sizeX, sizeZ) {
		return true
	}
	return false
}

// AdjustDamage is the pre-damage hook: units standing inside their own
// start region take no damage or impulse from other alliances.
func (m *Match) AdjustDamage(victimAlliance, attackerAlliance int32, x, z, damage, impulse float64) (float64, float64) {
	if !m.opts.Enabled || attackerAlliance == victimAlliance {
		return damage, impulse
	}
	if start, ok := m.starts[victimAlliance]; ok && start.ContainsPoint(x, z) {
		return 0, 0
	}
	return damage, impulse
}
