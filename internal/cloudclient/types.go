package cloudclient

import "encoding/json"

// PushRequest is the envelope POSTed to /api/hub/push/{entity}.
type PushRequest struct {
	EntityType    string          `json:"entityType"`
	EntityID      string          `json:"entityId"`
	Action        string          `json:"action"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlationId"`
}

// PullResponse is the shape returned by GET /api/hub/sync/{entity}. Cloud
// endpoints may also return a bare JSON array instead of this wrapper;
// callers fall back to treating the whole body as Items in that case.
type PullResponse struct {
	Items       json.RawMessage `json:"items"`
	HasMore     bool            `json:"hasMore"`
	NextCursor  string          `json:"nextCursor"`
	DeletedIDs  []string        `json:"deletedIds"`
}

// HeartbeatRequest is POSTed to /api/hub/heartbeat every 60 seconds.
type HeartbeatRequest struct {
	TerminalCount     int `json:"terminalCount"`
	PendingSyncCount  int `json:"pendingSyncCount"`
}

// RegisterRequest is POSTed to /api/hub/register on first boot.
type RegisterRequest struct {
	TenantID     string `json:"tenantId"`
	LocationID   string `json:"locationId"`
	HubPublicKey string `json:"hubPublicKey,omitempty"`
}

// RegisterResponse carries the hub's minted credentials.
type RegisterResponse struct {
	APIKey     string `json:"apiKey"`
	TenantID   string `json:"tenantId"`
	LocationID string `json:"locationId"`
}

// PairInitResponse is returned by POST /api/hub/pair/init, starting the
// setup-wizard pairing flow.
type PairInitResponse struct {
	PairingCode string `json:"pairingCode"`
	ExpiresAt   string `json:"expiresAt"`
}

// PairStatusResponse is returned by GET /api/hub/pair/status while a
// pairing code is outstanding.
type PairStatusResponse struct {
	Status      string            `json:"status"`
	Credentials *RegisterResponse `json:"credentials,omitempty"`
}
