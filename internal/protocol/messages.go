package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ActorName       string `json:"actor_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ActorID         string      `json:"actor_id"`
	World           string      `json:"world"`
	FirstJoin       bool        `json:"first_join"`
	SpawnParams     SpawnParams `json:"spawn_params"`
}

type SpawnParams struct {
	Radius          int `json:"radius"`
	MaxAttempts     int `json:"max_attempts"`
	CooldownSeconds int `json:"cooldown_seconds"`
}

// SPAWN (client -> server): ask for a fresh random placement.
type SpawnMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
}

// RESPAWN (client -> server): the actor died and is respawning. Bed and
// anchor respawns keep their point and are not re-placed.
type RespawnMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	BedSpawn        bool   `json:"bed_spawn"`
}

// Causes reported in SPAWN_RESULT.
const (
	CauseJoin    = "JOIN"
	CauseCommand = "COMMAND"
	CauseRespawn = "RESPAWN"
)

// SPAWN_RESULT (server -> client)
type SpawnResultMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	RequestID       string     `json:"request_id,omitempty"`
	Cause           string     `json:"cause"`
	OK              bool       `json:"ok"`
	Pos             [3]float64 `json:"pos"`
	Message         string     `json:"message,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type             string `json:"type"`
	ProtocolVersion  string `json:"protocol_version"`
	RequestID        string `json:"request_id,omitempty"`
	Code             string `json:"code"`
	Message          string `json:"message"`
	RemainingSeconds int    `json:"remaining_seconds,omitempty"`
}
