package agent

import "errors"

// Sentinel errors returned by the engine, registry, and quota tracker.
var (
	ErrQuotaExceeded       = errors.New("agent: quota exceeded")
	ErrUnknownTool         = errors.New("agent: unknown tool")
	ErrForbiddenTool       = errors.New("agent: forbidden tool")
	ErrBudgetExhausted     = errors.New("agent: budget exhausted")
	ErrConversationInvalid = errors.New("agent: conversation invariant violated")
)
