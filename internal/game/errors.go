// apps/go-server/internal/game/errors.go
//
// Sentinel errors of the guess engine.

package game

import "errors"

var (
	ErrInvalidIndex     = errors.New("image index not selectable")
	ErrEmptyGuess       = errors.New("empty guess")
	ErrNoActiveRound    = errors.New("no active round")
	ErrRoundOver        = errors.New("round is over")
	ErrStaleTransition  = errors.New("transition computed against an older round state")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrUnknownItem      = errors.New("unknown item")
	ErrInvalidItem      = errors.New("item has no images")
	ErrItemFinished     = errors.New("item already finished")
	ErrCatalogExhausted = errors.New("every item in the catalog is finished")
)
