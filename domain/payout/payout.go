// Package payout declares the shared settlement engine. Every module
// routes funds through it: pulls into escrow on the way in, the royalty
// and fee waterfall plus delivery on the way out.
package payout

import (
	"math/big"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/exchange"
)

type Payment struct {
	Recipient domain.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

type IncomingParams struct {
	Module   domain.Address
	ChainId  domain.ChainId
	From     domain.Address
	Currency domain.Address
	Amount   *big.Int
	// AttachedValue is the native value the caller sent along with the
	// request. Ignored for token currencies.
	AttachedValue *big.Int
}

type SaleParams struct {
	Module         domain.Address
	ChainId        domain.ChainId
	TokenContract  domain.Address
	TokenId        domain.TokenId
	Currency       domain.Address
	Amount         *big.Int
	FundsRecipient domain.Address
	ListingFee     *exchange.ListingFee
	FindersFeeBps  domain.Bps
	Finder         domain.Address
}

// Distribution records where a sale went, in waterfall order. Royalties
// first, then protocol fee, listing fee and finders fee, each taken from
// what the prior steps left, with the rest to the funds recipient.
type Distribution struct {
	Royalties   []Payment `json:"royalties"`
	ProtocolFee *Payment  `json:"protocolFee,omitempty"`
	ListingFee  *Payment  `json:"listingFee,omitempty"`
	FindersFee  *Payment  `json:"findersFee,omitempty"`
	Seller      Payment   `json:"seller"`
}

type Engine interface {
	// HandleIncoming pulls funds from a user into escrow, verifying module
	// approval, attached value for native payments and the delivered
	// balance delta for token payments.
	HandleIncoming(c ctx.Ctx, params IncomingParams) error

	// HandleOutgoing pays out of escrow. Zero amounts are a no-op. Native
	// payouts that cannot be delivered within the call budget fall back to
	// wrapped native so settlement always completes.
	HandleOutgoing(c ctx.Ctx, chainId domain.ChainId, to, currency domain.Address, amount *big.Int) error

	// DistributeSale runs the waterfall over escrowed sale proceeds.
	DistributeSale(c ctx.Ctx, params SaleParams) (*Distribution, error)

	// TransferNft moves the NFT on the module's behalf, verifying the
	// owner approved the module.
	TransferNft(c ctx.Ctx, module domain.Address, chainId domain.ChainId, contract, from, to domain.Address, tokenId domain.TokenId) error
}
