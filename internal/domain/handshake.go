package domain

import "time"

// Handshake captures the state/verifier pair persisted for one pending
// OAuth authorization round-trip. It lives exactly as long as the redirect
// and is destroyed at callback time, success or failure.
type Handshake struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	CreatedAt    time.Time `json:"created_at"`
}
