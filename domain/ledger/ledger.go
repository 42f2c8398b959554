// Package ledger declares the asset collaborators the settlement engine
// moves value through. The engine never touches balances directly; it only
// talks to these interfaces, so a chain client, a bank adapter or the
// in-memory ledger used in tests can all back it.
package ledger

import (
	"math/big"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
)

// Native moves the chain's native asset between accounts.
type Native interface {
	BalanceOf(c ctx.Ctx, account domain.Address) (*big.Int, error)
	// Transfer debits from and credits to. Implementations may reject a
	// transfer on behalf of the recipient (the analogue of a receiver
	// contract reverting); callers are expected to fall back to the
	// wrapped token.
	Transfer(c ctx.Ctx, from, to domain.Address, amount *big.Int) error
}

// Erc20 is the minimal fungible-token surface the engine needs.
type Erc20 interface {
	BalanceOf(c ctx.Ctx, currency, owner domain.Address) (*big.Int, error)
	Transfer(c ctx.Ctx, currency, from, to domain.Address, amount *big.Int) error
	// TransferFrom pulls from a user's balance and requires the user to
	// have approved the operator.
	TransferFrom(c ctx.Ctx, currency, operator, from, to domain.Address, amount *big.Int) error
}

// Erc721 is the minimal non-fungible surface the engine needs.
type Erc721 interface {
	OwnerOf(c ctx.Ctx, contract domain.Address, tokenId domain.TokenId) (domain.Address, error)
	IsApprovedForAll(c ctx.Ctx, contract, owner, operator domain.Address) (bool, error)
	TransferFrom(c ctx.Ctx, contract, operator, from, to domain.Address, tokenId domain.TokenId) error
}

// WrappedNative is the deposit-and-transfer fallback target for native
// payouts that cannot be delivered directly.
type WrappedNative interface {
	Address(chainId domain.ChainId) domain.Address
	// Deposit converts amount of the holder's native balance into wrapped
	// balance.
	Deposit(c ctx.Ctx, chainId domain.ChainId, holder domain.Address, amount *big.Int) error
	Transfer(c ctx.Ctx, chainId domain.ChainId, from, to domain.Address, amount *big.Int) error
	BalanceOf(c ctx.Ctx, chainId domain.ChainId, owner domain.Address) (*big.Int, error)
}
