package usecase

import (
	"fmt"
	"math/big"
	"time"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/guard"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/exchange"
	"github.com/modx-xyz/exchange/domain/ledger"
	"github.com/modx-xyz/exchange/domain/offer"
	"github.com/modx-xyz/exchange/domain/payout"
)

var timeNow = time.Now

type OfferUseCaseCfg struct {
	Offers offer.Repo
	Payout payout.Engine
	Erc721 ledger.Erc721
	Bus    exchange.Dispatcher
	Module domain.Address
}

type impl struct {
	offers offer.Repo
	payout payout.Engine
	erc721 ledger.Erc721
	bus    exchange.Dispatcher
	module domain.Address
	guard  *guard.Guard
}

func New(cfg *OfferUseCaseCfg) offer.UseCase {
	return &impl{
		offers: cfg.Offers,
		payout: cfg.Payout,
		erc721: cfg.Erc721,
		bus:    cfg.Bus,
		module: cfg.Module.ToLower(),
		guard:  guard.New(),
	}
}

func nftKey(id exchange.NftId) string {
	return fmt.Sprintf("%d:%s:%s", id.ChainId, id.ContractAddress.ToLower(), id.TokenId)
}

func (im *impl) FindAll(c ctx.Ctx, opts ...offer.FindAllOptionsFunc) ([]*offer.Offer, error) {
	return im.offers.FindAll(c, opts...)
}

func (im *impl) GetOffer(c ctx.Ctx, id offer.Id) (*offer.Offer, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	return im.offers.FindOne(c, id)
}

func parseAttached(attachedValue string) (*big.Int, error) {
	if attachedValue == "" {
		return new(big.Int), nil
	}
	return domain.ParseAmount(attachedValue)
}

func (im *impl) CreateOffer(c ctx.Ctx, nftId exchange.NftId, params offer.CreateOfferParams) (*offer.Offer, error) {
	nftId = nftId.ToLower()
	release := im.guard.Lock(nftKey(nftId))
	defer release()

	amount, err := domain.ParseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	if !params.FindersFeeBps.Valid() {
		return nil, domain.ErrInvalidFeeBps
	}

	now := timeNow().UTC()
	if params.Expiry != nil && !params.Expiry.After(now) {
		return nil, domain.ErrInvalidExpiry
	}

	attached, err := parseAttached(params.AttachedValue)
	if err != nil {
		return nil, err
	}

	// funds go into escrow up front; the record only ever mirrors what is
	// already held
	if err := im.payout.HandleIncoming(c, payout.IncomingParams{
		Module:        im.module,
		ChainId:       nftId.ChainId,
		From:          params.Caller,
		Currency:      params.Currency,
		Amount:        amount,
		AttachedValue: attached,
	}); err != nil {
		return nil, err
	}

	offerId, err := im.offers.NextOfferId(c, nftId)
	if err != nil {
		return nil, err
	}

	record := &offer.Offer{
		ChainId:         nftId.ChainId,
		ContractAddress: nftId.ContractAddress,
		TokenId:         nftId.TokenId,
		OfferId:         offerId,
		Buyer:           params.Caller.ToLower(),
		Amount:          params.Amount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	record.Features.SetCurrency(params.Currency)
	record.Features.SetFindersFee(params.FindersFeeBps)
	record.Features.SetExpiry(params.Expiry)

	if err := im.offers.Upsert(c, record); err != nil {
		return nil, err
	}
	im.bus.Publish(c, &offer.CreatedEvent{Offer: *record})
	return record, nil
}

func (im *impl) SetOfferAmount(c ctx.Ctx, id offer.Id, caller domain.Address, amount string, attachedValue string) (*offer.Offer, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(exchange.NftId{ChainId: id.ChainId, ContractAddress: id.ContractAddress, TokenId: id.TokenId}))
	defer release()

	record, err := im.offers.FindOne(c, id)
	if err != nil {
		return nil, err
	}
	if !record.Buyer.Equals(caller) {
		return nil, domain.ErrNotBuyer
	}

	next, err := domain.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	prev := domain.MustBigInt(record.Amount)
	currency := record.Features.Currency()

	// move exactly the delta so escrow keeps matching the sum of open
	// offers
	switch next.Cmp(prev) {
	case 1:
		attached, err := parseAttached(attachedValue)
		if err != nil {
			return nil, err
		}
		if err := im.payout.HandleIncoming(c, payout.IncomingParams{
			Module:        im.module,
			ChainId:       id.ChainId,
			From:          caller,
			Currency:      currency,
			Amount:        new(big.Int).Sub(next, prev),
			AttachedValue: attached,
		}); err != nil {
			return nil, err
		}
	case -1:
		if err := im.payout.HandleOutgoing(c, id.ChainId, record.Buyer, currency, new(big.Int).Sub(prev, next)); err != nil {
			return nil, err
		}
	}

	record.Amount = amount
	record.UpdatedAt = timeNow().UTC()

	if err := im.offers.Upsert(c, record); err != nil {
		return nil, err
	}
	im.bus.Publish(c, &offer.AmountUpdatedEvent{Offer: *record})
	return record, nil
}

func (im *impl) CancelOffer(c ctx.Ctx, id offer.Id, caller domain.Address) error {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(exchange.NftId{ChainId: id.ChainId, ContractAddress: id.ContractAddress, TokenId: id.TokenId}))
	defer release()

	record, err := im.offers.FindOne(c, id)
	if err != nil {
		return err
	}
	if !record.Buyer.Equals(caller) {
		return domain.ErrNotBuyer
	}

	if err := im.payout.HandleOutgoing(c, id.ChainId, record.Buyer, record.Features.Currency(), domain.MustBigInt(record.Amount)); err != nil {
		return err
	}

	if err := im.offers.Remove(c, id); err != nil {
		return err
	}
	im.bus.Publish(c, &offer.CanceledEvent{Offer: *record})
	return nil
}

func (im *impl) FillOffer(c ctx.Ctx, id offer.Id, params offer.FillOfferParams) (*offer.Offer, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(exchange.NftId{ChainId: id.ChainId, ContractAddress: id.ContractAddress, TokenId: id.TokenId}))
	defer release()

	record, err := im.offers.FindOne(c, id)
	if err != nil {
		return nil, err
	}

	now := timeNow().UTC()
	if expiry, ok := record.Features.Expiry(); ok && !now.Before(expiry) {
		return nil, domain.ErrExpired
	}

	if params.Amount != record.Amount {
		return nil, domain.ErrPriceMismatch
	}
	currency := record.Features.Currency()
	if params.Currency.IsEmpty() != currency.IsEmpty() ||
		(!currency.IsEmpty() && !params.Currency.Equals(currency)) {
		return nil, domain.ErrCurrencyMismatch
	}

	// only the token's current owner (or an operator) can take the offer
	owner, err := im.erc721.OwnerOf(c, id.ContractAddress, id.TokenId)
	if err != nil {
		return nil, err
	}
	if !owner.Equals(params.Caller) {
		approved, err := im.erc721.IsApprovedForAll(c, id.ContractAddress, owner, params.Caller)
		if err != nil {
			return nil, err
		}
		if !approved {
			return nil, domain.ErrNotTokenOwnerOrOperator
		}
	}

	amount := domain.MustBigInt(record.Amount)
	if _, err := im.payout.DistributeSale(c, payout.SaleParams{
		Module:         im.module,
		ChainId:        id.ChainId,
		TokenContract:  id.ContractAddress,
		TokenId:        id.TokenId,
		Currency:       currency,
		Amount:         amount,
		FundsRecipient: owner,
		FindersFeeBps:  record.Features.FindersFeeBps(),
		Finder:         params.Finder,
	}); err != nil {
		return nil, err
	}

	if err := im.payout.TransferNft(c, im.module, id.ChainId, id.ContractAddress, owner, record.Buyer, id.TokenId); err != nil {
		return nil, err
	}

	if err := im.offers.Remove(c, id); err != nil {
		return nil, err
	}

	im.bus.Publish(c, &offer.FilledEvent{
		Offer:  *record,
		Taker:  params.Caller.ToLower(),
		Finder: params.Finder.ToLower(),
	})
	im.bus.Publish(c, &exchange.ExecutedEvent{
		Module:  im.module,
		ChainId: id.ChainId,
		UserA:   params.Caller.ToLower(),
		UserB:   record.Buyer,
		A:       exchange.Details{TokenContract: id.ContractAddress, TokenId: id.TokenId, Amount: "1"},
		B:       exchange.Details{TokenContract: currency, Amount: record.Amount},
		Time:    now,
	})
	return record, nil
}
