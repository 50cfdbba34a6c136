package model

// InvariantError signals that a mutation would violate a data-model
// invariant (e.g. balance.locked_amount > balance.amount). It is always a
// programming error in the engine itself, never a consequence of user input.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return e.Msg }

// Kind classifies a command-processing failure so the queue worker knows
// whether to ack-and-drop, rollback-and-nak for redelivery, or
// rollback-and-ack.
type Kind int8

const (
	// KindNotEnoughBalance means the command is individually well-formed
	// but the user's available balance cannot cover it. Terminal: acked
	// and dropped, never retried, because retrying without a deposit
	// changes nothing.
	KindNotEnoughBalance Kind = iota
	// KindConflict means a concurrent mutation raced this command (e.g.
	// the order was canceled between dequeue and lock). Transient:
	// rolled back and nak'd so the broker redelivers the same message.
	KindConflict
	// KindInternal means an unexpected failure (e.g. a balance load
	// error). Logged, rolled back and acked so a message that fails the
	// same way every time cannot loop as a poison pill.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotEnoughBalance:
		return "not_enough_balance"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the typed error every command handler returns. Wrap with %w so
// callers can still errors.As a lower-level cause while the worker only
// inspects Kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NewNotEnoughBalance(msg string) *Error {
	return &Error{Kind: KindNotEnoughBalance, Msg: msg}
}

func NewConflict(msg string) *Error {
	return &Error{Kind: KindConflict, Msg: msg}
}

func NewInternal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}
