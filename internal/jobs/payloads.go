package jobs

// Payloads stay ID based; the worker needs nothing from the deleted rows.

type PurgeSessionsPayload struct {
	UserID string `json:"userId"`
}

type DeleteAvatarPayload struct {
	UserID string `json:"userId"`
	Key    string `json:"key"`
}
