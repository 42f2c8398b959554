package usecase

import (
	"fmt"
	"math/big"
	"time"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/guard"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/ask"
	"github.com/modx-xyz/exchange/domain/exchange"
	"github.com/modx-xyz/exchange/domain/ledger"
	"github.com/modx-xyz/exchange/domain/payout"
)

var timeNow = time.Now

type AskUseCaseCfg struct {
	Asks   ask.Repo
	Payout payout.Engine
	Erc20  ledger.Erc20
	Erc721 ledger.Erc721
	Bus    exchange.Dispatcher

	// Module is the address this module pulls and transfers under. Users
	// must have approved it in the module registry.
	Module domain.Address
}

type impl struct {
	asks   ask.Repo
	payout payout.Engine
	erc20  ledger.Erc20
	erc721 ledger.Erc721
	bus    exchange.Dispatcher
	module domain.Address
	guard  *guard.Guard
}

func New(cfg *AskUseCaseCfg) ask.UseCase {
	return &impl{
		asks:   cfg.Asks,
		payout: cfg.Payout,
		erc20:  cfg.Erc20,
		erc721: cfg.Erc721,
		bus:    cfg.Bus,
		module: cfg.Module.ToLower(),
		guard:  guard.New(),
	}
}

func nftKey(id ask.Id) string {
	return fmt.Sprintf("%d:%s:%s", id.ChainId, id.ContractAddress.ToLower(), id.TokenId)
}

func (im *impl) FindAll(c ctx.Ctx, opts ...ask.FindAllOptionsFunc) ([]*ask.Ask, error) {
	return im.asks.FindAll(c, opts...)
}

func (im *impl) GetAsk(c ctx.Ctx, id ask.Id) (*ask.Ask, error) {
	return im.asks.FindOne(c, id)
}

// isOwnerOrOperator reports whether caller may act for the NFT's current
// owner, and returns that owner.
func (im *impl) isOwnerOrOperator(c ctx.Ctx, id ask.Id, caller domain.Address) (domain.Address, bool, error) {
	owner, err := im.erc721.OwnerOf(c, id.ContractAddress, id.TokenId)
	if err != nil {
		return domain.EmptyAddress, false, err
	}
	if owner.Equals(caller) {
		return owner, true, nil
	}
	approved, err := im.erc721.IsApprovedForAll(c, id.ContractAddress, owner, caller)
	if err != nil {
		return domain.EmptyAddress, false, err
	}
	return owner, approved, nil
}

func (im *impl) CreateAsk(c ctx.Ctx, id ask.Id, params ask.CreateAskParams) (*ask.Ask, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(id))
	defer release()

	if _, err := domain.ParseAmount(params.Price); err != nil {
		return nil, err
	}
	if !params.FindersFeeBps.Valid() || !params.ListingFeeBps.Valid() {
		return nil, domain.ErrInvalidFeeBps
	}
	if (params.ListingFeeBps > 0) != !params.ListingFeeTo.IsEmpty() {
		return nil, domain.ErrInvalidListingFee
	}

	now := timeNow().UTC()
	if params.Expiry != nil && !params.Expiry.After(now) {
		return nil, domain.ErrInvalidExpiry
	}

	if _, ok, err := im.isOwnerOrOperator(c, id, params.Caller); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrNotTokenOwnerOrOperator
	}

	// Replacing a live ask cancels it explicitly so indexers never see two
	// creations for one NFT without a cancellation between them.
	if prev, err := im.asks.FindOne(c, id); err == nil {
		im.bus.Publish(c, &ask.CanceledEvent{Ask: *prev})
	} else if err != domain.ErrNotFound {
		return nil, err
	}

	record := &ask.Ask{
		ChainId:         id.ChainId,
		ContractAddress: id.ContractAddress,
		TokenId:         id.TokenId,
		Seller:          params.Caller.ToLower(),
		Price:           params.Price,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	record.Features.SetCurrency(params.Currency)
	record.Features.SetExpiry(params.Expiry)
	record.Features.SetFundsRecipient(params.FundsRecipient)
	record.Features.SetFindersFee(params.FindersFeeBps)
	record.Features.SetListingFee(params.ListingFeeBps, params.ListingFeeTo)
	record.Features.SetBuyer(params.Buyer)

	if err := im.asks.Upsert(c, record); err != nil {
		return nil, err
	}
	im.bus.Publish(c, &ask.CreatedEvent{Ask: *record})
	return record, nil
}

func (im *impl) SetAskPrice(c ctx.Ctx, id ask.Id, caller domain.Address, price string, currency domain.Address) (*ask.Ask, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(id))
	defer release()

	record, err := im.asks.FindOne(c, id)
	if err != nil {
		return nil, err
	}
	if !record.Seller.Equals(caller) {
		return nil, domain.ErrNotSeller
	}
	if _, err := domain.ParseAmount(price); err != nil {
		return nil, err
	}

	record.Price = price
	record.Features.SetCurrency(currency)
	record.UpdatedAt = timeNow().UTC()

	if err := im.asks.Upsert(c, record); err != nil {
		return nil, err
	}
	im.bus.Publish(c, &ask.PriceUpdatedEvent{Ask: *record})
	return record, nil
}

func (im *impl) CancelAsk(c ctx.Ctx, id ask.Id, caller domain.Address) error {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(id))
	defer release()

	record, err := im.asks.FindOne(c, id)
	if err != nil {
		return err
	}
	if !record.Seller.Equals(caller) {
		// the current owner may clean up an ask left behind by a previous
		// owner
		if _, ok, err := im.isOwnerOrOperator(c, id, caller); err != nil {
			return err
		} else if !ok {
			return domain.ErrNotTokenOwnerOrOperator
		}
	}

	if err := im.asks.Remove(c, id); err != nil {
		return err
	}
	im.bus.Publish(c, &ask.CanceledEvent{Ask: *record})
	return nil
}

func (im *impl) FillAsk(c ctx.Ctx, id ask.Id, params ask.FillAskParams) (*ask.Ask, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(id))
	defer release()

	record, err := im.asks.FindOne(c, id)
	if err != nil {
		return nil, err
	}

	now := timeNow().UTC()
	if start, ok := record.Features.StartTime(); ok && now.Before(start) {
		return nil, domain.ErrNotStarted
	}
	if expiry, ok := record.Features.Expiry(); ok && !now.Before(expiry) {
		return nil, domain.ErrExpired
	}
	if buyer, ok := record.Features.Buyer(); ok && !buyer.Equals(params.Caller) {
		return nil, domain.ErrNotBuyer
	}
	if gate, ok := record.Features.TokenGate(); ok {
		balance, err := im.erc20.BalanceOf(c, gate.Token, params.Caller)
		if err != nil {
			return nil, err
		}
		if balance.Cmp(domain.MustBigInt(gate.MinAmount)) < 0 {
			return nil, domain.ErrTokenGateInsufficient
		}
	}

	// commit-and-check: the fill carries the price the buyer saw, so a
	// concurrent repricing makes the fill fail instead of surprising them
	if params.Price != record.Price {
		return nil, domain.ErrPriceMismatch
	}
	currency := record.Features.Currency()
	if params.Currency.IsEmpty() != currency.IsEmpty() ||
		(!currency.IsEmpty() && !params.Currency.Equals(currency)) {
		return nil, domain.ErrCurrencyMismatch
	}

	// asks survive token transfers; they are only checked lazily here
	owner, ok, err := im.isOwnerOrOperator(c, id, record.Seller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotTokenOwnerOrOperator
	}

	amount := domain.MustBigInt(record.Price)
	attached := new(big.Int)
	if params.AttachedValue != "" {
		if attached, err = domain.ParseAmount(params.AttachedValue); err != nil {
			return nil, err
		}
	}

	if err := im.payout.HandleIncoming(c, payout.IncomingParams{
		Module:        im.module,
		ChainId:       id.ChainId,
		From:          params.Caller,
		Currency:      currency,
		Amount:        amount,
		AttachedValue: attached,
	}); err != nil {
		return nil, err
	}

	var listingFee *exchange.ListingFee
	if fee, ok := record.Features.ListingFee(); ok {
		listingFee = &fee
	}
	if _, err := im.payout.DistributeSale(c, payout.SaleParams{
		Module:         im.module,
		ChainId:        id.ChainId,
		TokenContract:  id.ContractAddress,
		TokenId:        id.TokenId,
		Currency:       currency,
		Amount:         amount,
		FundsRecipient: record.Features.FundsRecipient(record.Seller),
		ListingFee:     listingFee,
		FindersFeeBps:  record.Features.FindersFeeBps(),
		Finder:         params.Finder,
	}); err != nil {
		return nil, err
	}

	if err := im.payout.TransferNft(c, im.module, id.ChainId, id.ContractAddress, owner, params.Caller, id.TokenId); err != nil {
		return nil, err
	}

	if err := im.asks.Remove(c, id); err != nil {
		return nil, err
	}

	im.bus.Publish(c, &ask.FilledEvent{
		Ask:    *record,
		Buyer:  params.Caller.ToLower(),
		Finder: params.Finder.ToLower(),
	})
	im.bus.Publish(c, &exchange.ExecutedEvent{
		Module:  im.module,
		ChainId: id.ChainId,
		UserA:   record.Seller,
		UserB:   params.Caller.ToLower(),
		A:       exchange.Details{TokenContract: id.ContractAddress, TokenId: id.TokenId, Amount: "1"},
		B:       exchange.Details{TokenContract: currency, Amount: record.Price},
		Time:    now,
	})
	return record, nil
}
