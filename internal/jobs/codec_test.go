package jobs

import (
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/job"
)

func TestNewRequestDecode_PurgeSessions(t *testing.T) {
	runAt := time.Now().Add(time.Minute)

	req, err := NewRequest(JobPurgeSessions, PurgeSessionsPayload{UserID: "user-1"}, runAt)
	if err != nil {
		t.Fatalf("NewRequest error: %v", err)
	}
	if req.Type != string(JobPurgeSessions) || !req.RunAt.Equal(runAt) {
		t.Fatalf("unexpected request: %+v", req)
	}

	decoded, err := DecodePayload(job.New(req))
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}

	p, ok := decoded.(PurgeSessionsPayload)
	if !ok {
		t.Fatalf("expected PurgeSessionsPayload, got %T", decoded)
	}
	if p.UserID != "user-1" {
		t.Fatalf("expected userId user-1, got %s", p.UserID)
	}
}

func TestEncodePayload_PointerAccepted(t *testing.T) {
	b, err := EncodePayload(JobDeleteAvatar, &DeleteAvatarPayload{UserID: "u1", Key: "avatars/u1"})
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}
	if string(b) != `{"userId":"u1","key":"avatars/u1"}` {
		t.Fatalf("unexpected json %s", b)
	}
}

func TestEncodePayload_TypeMismatch(t *testing.T) {
	_, err := EncodePayload(JobPurgeSessions, DeleteAvatarPayload{UserID: "u1", Key: "k"})
	if !errors.Is(err, ErrPayloadTypeMismatch) {
		t.Fatalf("expected ErrPayloadTypeMismatch, got %v", err)
	}
}

func TestEncodePayload_UnknownType(t *testing.T) {
	_, err := EncodePayload(JobType("send_newsletter"), PurgeSessionsPayload{UserID: "u1"})
	if !errors.Is(err, ErrInvalidJobType) {
		t.Fatalf("expected ErrInvalidJobType, got %v", err)
	}
}

func TestValidatePayload_RequiredIDs(t *testing.T) {
	if err := ValidatePayload(JobPurgeSessions, PurgeSessionsPayload{UserID: "  "}); !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("expected ErrInvalidJobPayload, got %v", err)
	}
	if err := ValidatePayload(JobDeleteAvatar, DeleteAvatarPayload{UserID: "u1"}); !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("expected ErrInvalidJobPayload for missing key, got %v", err)
	}
}

func TestDecodePayload_Garbage(t *testing.T) {
	_, err := DecodePayload(job.Job{Type: string(JobDeleteAvatar), Payload: []byte(`{"userId":`)})
	if !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("expected ErrInvalidJobPayload, got %v", err)
	}

	_, err = DecodePayload(job.Job{Type: string(JobDeleteAvatar), Payload: []byte(`{"userId":"u1"}`)})
	if !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("expected missing key to be rejected, got %v", err)
	}
}
