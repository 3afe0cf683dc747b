package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeError   = "ERROR"

	// Engine -> server.
	TypeFrame         = "FRAME"
	TypeUnitFinished  = "UNIT_FINISHED"
	TypeUnitGiven     = "UNIT_GIVEN"
	TypeUnitDestroyed = "UNIT_DESTROYED"
	TypeTeamDied      = "TEAM_DIED"
	TypeBuildCheck    = "BUILD_CHECK"
	TypeDamageCheck   = "DAMAGE_CHECK"

	// Server -> engine.
	TypeCmd           = "CMD"
	TypeBuildVerdict  = "BUILD_VERDICT"
	TypeDamageVerdict = "DAMAGE_VERDICT"

	// Server -> observer.
	TypeState     = "STATE"
	TypeMatchOver = "MATCH_OVER"
)

// Connection roles declared in HELLO.
const (
	RoleEngine   = "engine"
	RoleObserver = "observer"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
