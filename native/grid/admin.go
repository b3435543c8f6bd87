package grid

import (
	"fmt"
	"math/big"
)

// UpdateParams validates and persists a replacement configuration.
func (e *Engine) UpdateParams(cap Capability, params Params) error {
	next := params.Clone()
	return e.execute(func() error {
		if err := requireRole(cap, RoleAdmin); err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := e.state.GridParamsPut(&next); err != nil {
			return err
		}
		e.params = next
		e.emit(ParamsUpdatedEvent(cap.Subject))
		return nil
	})
}

// EmergencyWithdraw transfers stranded module funds of asset to to.
func (e *Engine) EmergencyWithdraw(cap Capability, asset Asset, to [20]byte, amount *big.Int) error {
	return e.execute(func() error {
		if err := requireRole(cap, RoleAdmin); err != nil {
			return err
		}
		if isZeroAddress(to) {
			return fmt.Errorf("%w: recipient address required", ErrInvalidInput)
		}
		if !validAmount(amount) {
			return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
		}
		ledger, err := e.ledger(asset)
		if err != nil {
			return err
		}
		if err := e.pay(ledger, to, amount); err != nil {
			return err
		}
		e.emit(EmergencyWithdrawnEvent(cap.Subject, asset, to, amount))
		return nil
	})
}

// RegisterRoot marks addr as registered so it can sponsor buyers before it
// has purchased anything. Registering an already registered account is a
// no-op.
func (e *Engine) RegisterRoot(cap Capability, addr [20]byte) error {
	return e.execute(func() error {
		if err := requireRole(cap, RoleAdmin); err != nil {
			return err
		}
		if isZeroAddress(addr) {
			return fmt.Errorf("%w: account address required", ErrInvalidInput)
		}
		acc, err := e.loadAccount(addr)
		if err != nil {
			return err
		}
		if acc.Registered {
			return nil
		}
		acc.Registered = true
		if err := e.state.GridAccountPut(acc); err != nil {
			return err
		}
		e.emit(RootRegisteredEvent(cap.Subject, addr))
		return nil
	})
}
