package jobs

import "strings"

// ValidatePayload checks that payload is the struct registered for t and
// carries its required ids.
func ValidatePayload(t JobType, payload any) error {
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	switch t {
	case JobPurgeSessions:
		var p PurgeSessionsPayload
		switch v := payload.(type) {
		case PurgeSessionsPayload:
			p = v
		case *PurgeSessionsPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if blank(p.UserID) {
			return ErrInvalidJobPayload
		}
		return nil

	case JobDeleteAvatar:
		var p DeleteAvatarPayload
		switch v := payload.(type) {
		case DeleteAvatarPayload:
			p = v
		case *DeleteAvatarPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if blank(p.UserID) || blank(p.Key) {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
