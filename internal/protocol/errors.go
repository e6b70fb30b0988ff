package protocol

const (
	// Protocol/transport validation.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrNotJoined  = "E_NOT_JOINED"

	// Spawn layer.
	ErrCooldown    = "E_COOLDOWN"
	ErrNoSafeSpot  = "E_NO_SAFE_SPOT"
	ErrUnavailable = "E_UNAVAILABLE"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:  {},
	ErrNotJoined:   {},
	ErrCooldown:    {},
	ErrNoSafeSpot:  {},
	ErrUnavailable: {},
	ErrInternal:    {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
