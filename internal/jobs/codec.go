package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/job"
)

// EncodePayload validates payload against t and marshals it.
func EncodePayload(t JobType, payload any) ([]byte, error) {
	if err := ValidatePayload(t, payload); err != nil {
		return nil, err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// NewRequest builds the create request for a job of type t due at runAt.
func NewRequest(t JobType, payload any, runAt time.Time) (job.CreateRequest, error) {
	b, err := EncodePayload(t, payload)
	if err != nil {
		return job.CreateRequest{}, err
	}

	return job.CreateRequest{
		Type:    string(t),
		Payload: b,
		RunAt:   runAt,
	}, nil
}

// DecodePayload unmarshals j.Payload into the typed payload of j.Type.
func DecodePayload(j job.Job) (any, error) {
	t := JobType(j.Type)
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return nil, ErrInvalidJobPayload
	}

	var p any
	switch t {
	case JobPurgeSessions:
		var v PurgeSessionsPayload
		if err := json.Unmarshal(j.Payload, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		p = v

	case JobDeleteAvatar:
		var v DeleteAvatarPayload
		if err := json.Unmarshal(j.Payload, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		p = v
	}

	if err := ValidatePayload(t, p); err != nil {
		return nil, err
	}
	return p, nil
}
