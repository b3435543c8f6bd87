package grid

import (
	"errors"
	"fmt"
)

var (
	ErrNilState              = errors.New("grid: state not configured")
	ErrLedgerNotConfigured   = errors.New("grid: value ledger not configured")
	ErrInvalidInput          = errors.New("grid: invalid input")
	ErrInvalidParams         = errors.New("grid: invalid params")
	ErrInsufficientFunds     = errors.New("grid: insufficient funds")
	ErrTransferFailed        = errors.New("grid: transfer failed")
	ErrPositionNotFound      = errors.New("grid: position not found")
	ErrPositionInactive      = errors.New("grid: position inactive")
	ErrPositionAlreadyActive = errors.New("grid: position already active")
	ErrNotOwner              = errors.New("grid: caller is not the position owner")
	ErrNotEligible           = errors.New("grid: not eligible")
	ErrCooldownActive        = errors.New("grid: draw cooldown active")
	ErrNothingToWithdraw     = errors.New("grid: nothing to withdraw")
	ErrEmptyPool             = errors.New("grid: dividend pool empty")
	ErrUnauthorized          = errors.New("grid: unauthorized")
	ErrRegistryMismatch      = errors.New("grid: collectible registry count mismatch")
)

// ErrAlreadyClaimed is a NotEligible outcome: errors.Is matches both.
var ErrAlreadyClaimed = fmt.Errorf("%w: airdrop already claimed in current period", ErrNotEligible)
