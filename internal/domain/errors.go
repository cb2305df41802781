package domain

import "errors"

var (
	ErrInvalidRecord  = errors.New("invalid ledger record")
	ErrNothingToUndo  = errors.New("no operation to undo")
	ErrUndoExpired    = errors.New("undo window expired")
	ErrNothingPending = errors.New("no operation awaiting confirmation")
	ErrForbidden      = errors.New("operator not authorized")
	ErrLedgerNotEmpty = errors.New("ledger is not empty")
)
