package turn

// Request is one user turn as declared by the client. Every field is client-controlled.
type Request struct {
	Tool             string   `json:"tool"`
	InviteCode       string   `json:"inviteCode"`
	UserText         string   `json:"userText"`
	UserMessageCount int      `json:"userMessageCount"`
	SessionStartMs   *float64 `json:"sessionStartMs,omitempty"`
	// UsageToken lets non-cookie transports carry the signed ledger.
	UsageToken string `json:"usageToken,omitempty"`
}
