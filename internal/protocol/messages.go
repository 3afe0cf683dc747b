package protocol

// HELLO (engine or observer -> server)
type HelloMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Role            string         `json:"role"`
	GameID          string         `json:"game_id,omitempty"`
	MapSizeX        float64        `json:"map_size_x,omitempty"`
	MapSizeZ        float64        `json:"map_size_z,omitempty"`
	ModOptions      []Option       `json:"mod_options,omitempty"`
	Alliances       []AllianceInfo `json:"alliances,omitempty"`
}

// AllianceInfo declares one alliance and its constituent teams.
type AllianceInfo struct {
	ID    int32   `json:"id"`
	Teams []int32 `json:"teams"`
}

// Option is one named mod option as the engine supplies it, value unparsed.
type Option struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// WELCOME (server -> engine/observer)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	GameID          string `json:"game_id,omitempty"`
	Enabled         bool   `json:"enabled"`
	TickCadence     int    `json:"tick_cadence,omitempty"`
	WinTicks        int64  `json:"win_ticks,omitempty"`
	CaptureTicks    int64  `json:"capture_ticks,omitempty"`
	Hill            *Area  `json:"hill,omitempty"`
}

// Area is the wire form of a map region, for observer outline rendering.
type Area struct {
	Shape  string  `json:"shape"` // "rect" | "circle"
	Left   float64 `json:"left,omitempty"`
	Top    float64 `json:"top,omitempty"`
	Right  float64 `json:"right,omitempty"`
	Bottom float64 `json:"bottom,omitempty"`
	X      float64 `json:"x,omitempty"`
	Z      float64 `json:"z,omitempty"`
	Radius float64 `json:"radius,omitempty"`
}

// FRAME (engine -> server): one simulation frame with fresh unit positions.
type FrameMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Tick            int64     `json:"tick"`
	Units           []UnitPos `json:"units,omitempty"`
}

type UnitPos struct {
	ID int32   `json:"id"`
	X  float64 `json:"x"`
	Z  float64 `json:"z"`
}

// UNIT_FINISHED / UNIT_GIVEN / UNIT_DESTROYED (engine -> server)
type UnitEventMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            int64   `json:"tick"`
	UnitID          int32   `json:"unit_id"`
	AllianceID      int32   `json:"alliance_id,omitempty"`
	DefName         string  `json:"def_name,omitempty"`
	Building        bool    `json:"building,omitempty"`
	X               float64 `json:"x,omitempty"`
	Z               float64 `json:"z,omitempty"`
	SizeX           float64 `json:"size_x,omitempty"`
	SizeZ           float64 `json:"size_z,omitempty"`
}

// TEAM_DIED (engine -> server)
type TeamDiedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            int64  `json:"tick"`
	TeamID          int32  `json:"team_id"`
	AllianceID      int32  `json:"alliance_id"`
}

// BUILD_CHECK (engine -> server): may this placement proceed?
type BuildCheckMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	RequestID       string  `json:"request_id"`
	AllianceID      int32   `json:"alliance_id"`
	X               float64 `json:"x"`
	Z               float64 `json:"z"`
	SizeX           float64 `json:"size_x"`
	SizeZ           float64 `json:"size_z"`
}

// BUILD_VERDICT (server -> engine)
type BuildVerdictMsg struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Allow     bool   `json:"allow"`
}

// DAMAGE_CHECK (engine -> server): pre-damage hook.
type DamageCheckMsg struct {
	Type             string  `json:"type"`
	ProtocolVersion  string  `json:"protocol_version"`
	RequestID        string  `json:"request_id"`
	VictimAlliance   int32   `json:"victim_alliance"`
	AttackerAlliance int32   `json:"attacker_alliance"`
	X                float64 `json:"x"`
	Z                float64 `json:"z"`
	Damage           float64 `json:"damage"`
	Impulse          float64 `json:"impulse"`
}

// DAMAGE_VERDICT (server -> engine)
type DamageVerdictMsg struct {
	Type      string  `json:"type"`
	RequestID string  `json:"request_id"`
	Damage    float64 `json:"damage"`
	Impulse   float64 `json:"impulse"`
}

// CMD (server -> engine): side effect the engine must apply.
type CmdMsg struct {
	Type       string  `json:"type"`
	Cmd        string  `json:"cmd"` // "demolish" | "vision_grant" | "vision_revoke" | "game_over" | "scale_health"
	UnitID     int32   `json:"unit_id,omitempty"`
	AllianceID int32   `json:"alliance_id,omitempty"`
	Factor     float64 `json:"factor,omitempty"`
}

// CMD verbs.
const (
	CmdDemolish     = "demolish"
	CmdVisionGrant  = "vision_grant"
	CmdVisionRevoke = "vision_revoke"
	CmdGameOver     = "game_over"
	CmdScaleHealth  = "scale_health"
)

// STATE (server -> observer): changed fields only. Pointer fields are
// omitted when unchanged since the previous STATE for this session.
type StateMsg struct {
	Type string `json:"type"`
	Tick int64  `json:"tick"`

	King       *int32           `json:"king,omitempty"`       // -1 = no king
	KingSince  *int64           `json:"king_since,omitempty"`
	Contesting *int32           `json:"contesting,omitempty"` // -1 = none
	Deadline   *int64           `json:"deadline,omitempty"`
	Capturing  *bool            `json:"capturing,omitempty"`  // contest direction
	Possession map[string]int64 `json:"possession,omitempty"` // alliance id -> ticks, negative = disqualified
}

// MATCH_OVER (server -> observer and engine)
type MatchOverMsg struct {
	Type       string `json:"type"`
	Tick       int64  `json:"tick"`
	AllianceID int32  `json:"alliance_id"`
}

// ERROR (server -> peer)
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
