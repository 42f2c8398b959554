package usecase

import (
	"fmt"
	"math/big"
	"time"

	"github.com/modx-xyz/exchange/base/call"
	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/log"
	"github.com/modx-xyz/exchange/base/metrics"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/ledger"
	"github.com/modx-xyz/exchange/domain/payout"
	"github.com/modx-xyz/exchange/domain/registry"
	"github.com/modx-xyz/exchange/domain/royalty"
)

// defaultBudget bounds each outgoing native delivery. A receiver that
// cannot take the funds within it gets wrapped native instead.
const defaultBudget = 50 * time.Millisecond

type Cfg struct {
	Native   ledger.Native
	Erc20    ledger.Erc20
	Erc721   ledger.Erc721
	Wrapped  ledger.WrappedNative
	Royalty  royalty.Oracle
	Registry registry.UseCase

	// Escrow is the account all modules pull into and pay out of.
	Escrow domain.Address

	Budget time.Duration
}

type impl struct {
	native   ledger.Native
	erc20    ledger.Erc20
	erc721   ledger.Erc721
	wrapped  ledger.WrappedNative
	royalty  royalty.Oracle
	registry registry.UseCase
	escrow   domain.Address
	budget   time.Duration
	met      metrics.Service
}

func New(cfg *Cfg) payout.Engine {
	budget := cfg.Budget
	if budget == 0 {
		budget = defaultBudget
	}
	return &impl{
		native:   cfg.Native,
		erc20:    cfg.Erc20,
		erc721:   cfg.Erc721,
		wrapped:  cfg.Wrapped,
		royalty:  cfg.Royalty,
		registry: cfg.Registry,
		escrow:   cfg.Escrow.ToLower(),
		budget:   budget,
		met:      metrics.New("payout"),
	}
}

func (im *impl) HandleIncoming(c ctx.Ctx, params payout.IncomingParams) error {
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return domain.ErrInvalidNumberFormat
	}

	approved, err := im.registry.IsModuleApproved(c, params.From, params.Module)
	if err != nil {
		return err
	}
	if !approved {
		return domain.ErrModuleNotApproved
	}

	if params.Currency.IsEmpty() {
		attached := params.AttachedValue
		if attached == nil {
			attached = domain.Big0
		}
		if attached.Cmp(params.Amount) < 0 {
			return domain.ErrInsufficientValue
		}
		return im.native.Transfer(c, params.From, im.escrow, params.Amount)
	}

	// Pull the tokens and verify what actually arrived, so tokens that
	// take a cut in transit cannot under-fund the escrow.
	before, err := im.erc20.BalanceOf(c, params.Currency, im.escrow)
	if err != nil {
		return err
	}
	if err := im.erc20.TransferFrom(c, params.Currency, im.escrow, params.From, im.escrow, params.Amount); err != nil {
		return err
	}
	after, err := im.erc20.BalanceOf(c, params.Currency, im.escrow)
	if err != nil {
		return err
	}
	if new(big.Int).Sub(after, before).Cmp(params.Amount) != 0 {
		return domain.ErrTransferAmountMismatch
	}
	return nil
}

func (im *impl) HandleOutgoing(c ctx.Ctx, chainId domain.ChainId, to, currency domain.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}

	if !currency.IsEmpty() {
		return im.erc20.Transfer(c, currency, im.escrow, to, amount)
	}

	err := call.Bounded(c, im.budget, func(c ctx.Ctx) error {
		return im.native.Transfer(c, im.escrow, to, amount)
	})
	if err == nil {
		return nil
	}
	c.WithFields(log.Fields{
		"err":    err,
		"to":     to,
		"amount": amount.String(),
	}).Info("native payout failed, falling back to wrapped native")
	im.met.BumpSum("nativePayout.fallback", 1, "chainId", fmt.Sprint(chainId))

	if err := im.wrapped.Deposit(c, chainId, im.escrow, amount); err != nil {
		return err
	}
	return im.wrapped.Transfer(c, chainId, im.escrow, to, amount)
}

func (im *impl) DistributeSale(c ctx.Ctx, params payout.SaleParams) (*payout.Distribution, error) {
	defer im.met.BumpTime("distributeSale.time", "module", params.Module.ToLowerStr()).End()

	remainder := new(big.Int).Set(params.Amount)
	dist := &payout.Distribution{}

	royalties, err := im.payRoyalties(c, params, remainder)
	if err != nil {
		return nil, err
	}
	dist.Royalties = royalties

	fee, err := im.registry.GetFeeAmount(c, params.Module, remainder)
	if err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		recipient, err := im.registry.FeeRecipient(c, params.Module)
		if err != nil {
			return nil, err
		}
		if err := im.HandleOutgoing(c, params.ChainId, recipient, params.Currency, fee); err != nil {
			return nil, err
		}
		remainder.Sub(remainder, fee)
		dist.ProtocolFee = &payout.Payment{Recipient: recipient, Amount: fee}
	}

	if params.ListingFee != nil && params.ListingFee.Bps > 0 {
		amount := params.ListingFee.Bps.Of(remainder)
		if amount.Sign() > 0 {
			if err := im.HandleOutgoing(c, params.ChainId, params.ListingFee.Recipient, params.Currency, amount); err != nil {
				return nil, err
			}
			remainder.Sub(remainder, amount)
			dist.ListingFee = &payout.Payment{Recipient: params.ListingFee.Recipient, Amount: amount}
		}
	}

	if params.FindersFeeBps > 0 && !params.Finder.IsEmpty() {
		amount := params.FindersFeeBps.Of(remainder)
		if amount.Sign() > 0 {
			if err := im.HandleOutgoing(c, params.ChainId, params.Finder, params.Currency, amount); err != nil {
				return nil, err
			}
			remainder.Sub(remainder, amount)
			dist.FindersFee = &payout.Payment{Recipient: params.Finder, Amount: amount}
		}
	}

	if err := im.HandleOutgoing(c, params.ChainId, params.FundsRecipient, params.Currency, remainder); err != nil {
		return nil, err
	}
	dist.Seller = payout.Payment{Recipient: params.FundsRecipient, Amount: remainder}

	return dist, nil
}

// payRoyalties pays creator royalties off the top. A schedule that asks
// for more than the sale is treated as no royalties at all; partial
// royalty payment is never attempted.
func (im *impl) payRoyalties(c ctx.Ctx, params payout.SaleParams, remainder *big.Int) ([]payout.Payment, error) {
	recipients, amounts, err := im.royalty.GetRoyalty(c, params.ChainId, params.TokenContract, params.TokenId, params.Amount)
	if err != nil {
		c.WithField("err", err).Warn("royalty lookup failed, skipping royalties")
		return nil, nil
	}
	if len(recipients) == 0 {
		return nil, nil
	}

	total := new(big.Int)
	for _, a := range amounts {
		total.Add(total, a)
	}
	if total.Cmp(remainder) > 0 {
		c.WithFields(log.Fields{
			"total": total.String(),
			"sale":  remainder.String(),
		}).Warn("royalty schedule insolvent, skipping royalties")
		return nil, nil
	}

	payments := make([]payout.Payment, 0, len(recipients))
	for i, recipient := range recipients {
		if err := im.HandleOutgoing(c, params.ChainId, recipient, params.Currency, amounts[i]); err != nil {
			return nil, err
		}
		remainder.Sub(remainder, amounts[i])
		payments = append(payments, payout.Payment{Recipient: recipient, Amount: amounts[i]})
	}
	return payments, nil
}

func (im *impl) TransferNft(c ctx.Ctx, module domain.Address, chainId domain.ChainId, contract, from, to domain.Address, tokenId domain.TokenId) error {
	approved, err := im.registry.IsModuleApproved(c, from, module)
	if err != nil {
		return err
	}
	if !approved {
		return domain.ErrModuleNotApproved
	}
	return im.erc721.TransferFrom(c, contract, im.escrow, from, to, tokenId)
}
