package turn

// Reason explains why a reply closed the session or interrupted it.
type Reason string

const (
	ReasonFinalTurn      Reason = "final_turn"
	ReasonSessionExpired Reason = "session_expired"
	ReasonMessageLimit   Reason = "message_limit"
	ReasonQuotaExceeded  Reason = "quota_exceeded"
	ReasonLanguageChoice Reason = "language_choice"
)

// Reply is the body returned for a governed turn.
type Reply struct {
	TurnID            string `json:"turnId"`
	Output            string `json:"output"`
	Locked            bool   `json:"locked"`
	Reason            Reason `json:"reason,omitempty"`
	RemainingMessages *int   `json:"remainingMessages,omitempty"`
	SessionEndsAt     int64  `json:"sessionEndsAt,omitempty"`
	UsageToken        string `json:"usageToken,omitempty"`
}
