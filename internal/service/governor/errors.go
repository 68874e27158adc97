package governor

import (
	"errors"

	"github.com/zhouzirui/boundary-tools/backend/internal/service/reply"
)

// Rejections and failures. Closed sessions are not errors; they are Plans with
// OutcomeClosed.
var (
	ErrEmptyMessage               = errors.New("empty message")
	ErrUnauthorized               = errors.New("invalid invite code")
	ErrUnknownTool                = errors.New("unknown tool")
	ErrMissingGeneratorCredential = errors.New("generator credentials are not configured")
	ErrGeneratorFailure           = errors.New("generator call failed")
	ErrEmptyGeneratorOutput       = reply.ErrEmptyGeneratorOutput
)
