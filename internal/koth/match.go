package koth

import (
	"log"
)

// NoAlliance marks "no king" / "no contest" fields.
const NoAlliance int32 = -1

// disqualified is the possession sentinel for an eliminated alliance. It is
// strictly negative so it can never be mistaken for legitimate zero
// possession, and it is written exactly once.
const disqualified int64 = -1

// Host is the surface of the engine simulation the mode needs. All calls
// happen on the match goroutine; implementations must not block.
type Host interface {
	// UnitPosition returns the current map position of a tracked unit.
	UnitPosition(unitID int32) (x, z float64, ok bool)
	// Demolish destroys a building (dethroning side effect).
	Demolish(unitID int32)
	// SetGlobalVision grants or revokes full-map visibility for an alliance.
	SetGlobalVision(allianceID int32, on bool)
	// ScaleHealth multiplies a unit's max and current health.
	ScaleHealth(unitID int32, factor float64)
	// GameOver ends the match in favor of the alliance.
	GameOver(allianceID int32)
}

type allianceState struct {
	teams      map[int32]bool // team id -> alive
	eliminated bool
}

// Match owns all King of the Hill state for one game. It is mutated only
// from the goroutine that drives Evaluate and the On* event methods; the
// host invokes those synchronously between frames, never concurrently.
type Match struct {
	opts     Options
	hill     Region
	starts   map[int32]Region // alliance id -> start region
	eligible map[string]bool  // capture-eligible unit def names

	host   Host
	logger *log.Logger

	alliances map[int32]*allianceState
	units     map[int32]int32 // tracked capture unit id -> owning alliance

	king          int32
	kingStartTick int64
	winTick       int64
	possession    map[int32]int64

	contesting      int32
	contestDeadline int64
	capturing       bool // true = progressing toward capture

	// Buildings raised by the current king inside the hill; demolished on
	// dethroning.
	hillBuildings map[int32]struct{}

	over   bool
	winner int32

	// Optional transition callback, set by the engine to feed event sinks.
	events func(MatchEvent)
}

func (m *Match) emit(tick int64, kind string, allianceID int32) {
	if m.events != nil {
		m.events(MatchEvent{Tick: tick, Kind: kind, AllianceID: allianceID})
	}
}

// NewMatch builds a match from parsed options. A malformed hill descriptor
// falls back to the default centered rectangle with a logged warning.
func NewMatch(opts Options, cfg Config, host Host, logger *log.Logger) *Match {
	hill, err := ParseRegion(opts.HillDesc, cfg.MapSizeX, cfg.MapSizeZ)
	if err != nil {
		if logger != nil {
			logger.Printf("hill descriptor: %v; using default region", err)
		}
		hill = DefaultHill(cfg.MapSizeX, cfg.MapSizeZ)
	}

	starts := make(map[int32]Region, len(cfg.StartRegions))
	for id, desc := range cfg.StartRegions {
		r, err := ParseRegion(desc, cfg.MapSizeX, cfg.MapSizeZ)
		if err != nil {
			if logger != nil {
				logger.Printf("start region %d: %v; using default region", id, err)
			}
			r = DefaultHill(cfg.MapSizeX, cfg.MapSizeZ)
		}
		starts[id] = r
	}

	eligible := make(map[string]bool, len(cfg.EligibleDefs))
	for _, d := range cfg.EligibleDefs {
		eligible[d] = true
	}

	return &Match{
		opts:          opts,
		hill:          hill,
		starts:        starts,
		eligible:      eligible,
		host:          host,
		logger:        logger,
		alliances:     map[int32]*allianceState{},
		units:         map[int32]int32{},
		king:          NoAlliance,
		winTick:       -1,
		possession:    map[int32]int64{},
		contesting:    NoAlliance,
		hillBuildings: map[int32]struct{}{},
	}
}

// RegisterAlliance records an alliance and its constituent teams. Called
// once per alliance during match setup.
func (m *Match) RegisterAlliance(allianceID int32, teamIDs []int32) {
	as := &allianceState{teams: make(map[int32]bool, len(teamIDs))}
	for _, t := range teamIDs {
		as.teams[t] = true
	}
	m.alliances[allianceID] = as
	if _, ok := m.possession[allianceID]; !ok {
		m.possession[allianceID] = 0
	}
}

// Hill exposes the hill region for the observer bootstrap.
func (m *Match) Hill() Region { return m.hill }

// Options exposes the parsed options.
func (m *Match) Options() Options { return m.opts }

// Over reports whether the match has ended, and for whom.
func (m *Match) Over() (bool, int32) { return m.over, m.winner }

// State is the published view of the match, consumed by observers.
type State struct {
	Tick       int64
	King       int32
	KingSince  int64
	Contesting int32
	Deadline   int64
	Capturing  bool
	Possession map[int32]int64
}

// Snapshot copies the publishable state at the given tick.
func (m *Match) Snapshot(tick int64) State {
	poss := make(map[int32]int64, len(m.possession))
	for id, t := range m.possession {
		poss[id] = t
	}
	return State{
		Tick:       tick,
		King:       m.king,
		KingSince:  m.kingStartTick,
		Contesting: m.contesting,
		Deadline:   m.contestDeadline,
		Capturing:  m.capturing,
		Possession: poss,
	}
}

// Progress returns the capture progress fraction for an alliance: its
// accumulated share of the win duration, in [0,1]. A disqualified alliance
// reports 0 and dq=true rather than clamping the sentinel into range.
func (m *Match) Progress(allianceID int32, tick int64) (frac float64, dq bool) {
	t, ok := m.possession[allianceID]
	if !ok {
		return 0, false
	}
	if t < 0 {
		return 0, true
	}
	total := t
	if m.king == allianceID {
		total += tick - m.kingStartTick
	}
	if m.opts.WinTicks <= 0 {
		return 0, false
	}
	f := float64(total) / float64(m.opts.WinTicks)
	if f > 1 {
		f = 1
	}
	return f, false
}
