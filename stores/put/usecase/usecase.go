package usecase

import (
	"fmt"
	"math/big"
	"time"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/guard"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/exchange"
	"github.com/modx-xyz/exchange/domain/payout"
	"github.com/modx-xyz/exchange/domain/put"
)

var timeNow = time.Now

type PutUseCaseCfg struct {
	Puts   put.Repo
	Payout payout.Engine
	Bus    exchange.Dispatcher
	Module domain.Address
}

type impl struct {
	puts   put.Repo
	payout payout.Engine
	bus    exchange.Dispatcher
	module domain.Address
	guard  *guard.Guard
}

func New(cfg *PutUseCaseCfg) put.UseCase {
	return &impl{
		puts:   cfg.Puts,
		payout: cfg.Payout,
		bus:    cfg.Bus,
		module: cfg.Module.ToLower(),
		guard:  guard.New(),
	}
}

func nftKey(id exchange.NftId) string {
	return fmt.Sprintf("%d:%s:%s", id.ChainId, id.ContractAddress.ToLower(), id.TokenId)
}

func parseAttached(attachedValue string) (*big.Int, error) {
	if attachedValue == "" {
		return new(big.Int), nil
	}
	return domain.ParseAmount(attachedValue)
}

func (im *impl) FindAll(c ctx.Ctx, opts ...put.FindAllOptionsFunc) ([]*put.Put, error) {
	return im.puts.FindAll(c, opts...)
}

func (im *impl) GetPut(c ctx.Ctx, id put.Id) (*put.Put, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	return im.puts.FindOne(c, id)
}

func (im *impl) CreatePut(c ctx.Ctx, nftId exchange.NftId, params put.CreatePutParams) (*put.Put, error) {
	nftId = nftId.ToLower()
	release := im.guard.Lock(nftKey(nftId))
	defer release()

	strike, err := domain.ParseAmount(params.Strike)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseAmount(params.Premium); err != nil {
		return nil, err
	}

	now := timeNow().UTC()
	if !params.Expiry.After(now) {
		return nil, domain.ErrInvalidExpiry
	}

	attached, err := parseAttached(params.AttachedValue)
	if err != nil {
		return nil, err
	}

	// the strike is escrowed for the whole life of the option, in native
	// currency only
	if err := im.payout.HandleIncoming(c, payout.IncomingParams{
		Module:        im.module,
		ChainId:       nftId.ChainId,
		From:          params.Caller,
		Currency:      domain.NativeCurrency,
		Amount:        strike,
		AttachedValue: attached,
	}); err != nil {
		return nil, err
	}

	putId, err := im.puts.NextPutId(c, nftId)
	if err != nil {
		return nil, err
	}

	record := &put.Put{
		ChainId:         nftId.ChainId,
		ContractAddress: nftId.ContractAddress,
		TokenId:         nftId.TokenId,
		PutId:           putId,
		Seller:          params.Caller.ToLower(),
		Premium:         params.Premium,
		Strike:          params.Strike,
		Expiry:          params.Expiry,
		CreatedAt:       now,
	}
	if err := im.puts.Upsert(c, record); err != nil {
		return nil, err
	}
	im.bus.Publish(c, &put.CreatedEvent{Put: *record})
	return record, nil
}

func (im *impl) CancelPut(c ctx.Ctx, id put.Id, caller domain.Address) error {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(exchange.NftId{ChainId: id.ChainId, ContractAddress: id.ContractAddress, TokenId: id.TokenId}))
	defer release()

	record, err := im.puts.FindOne(c, id)
	if err != nil {
		return err
	}
	if !record.Seller.Equals(caller) {
		return domain.ErrNotSeller
	}
	if record.Purchased() {
		return domain.ErrAlreadyPurchased
	}

	if err := im.payout.HandleOutgoing(c, id.ChainId, record.Seller, domain.NativeCurrency, domain.MustBigInt(record.Strike)); err != nil {
		return err
	}

	if err := im.puts.Remove(c, id); err != nil {
		return err
	}
	im.bus.Publish(c, &put.CanceledEvent{Put: *record})
	return nil
}

func (im *impl) BuyPut(c ctx.Ctx, id put.Id, params put.BuyPutParams) (*put.Put, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(exchange.NftId{ChainId: id.ChainId, ContractAddress: id.ContractAddress, TokenId: id.TokenId}))
	defer release()

	record, err := im.puts.FindOne(c, id)
	if err != nil {
		return nil, err
	}
	if record.Purchased() {
		return nil, domain.ErrAlreadyPurchased
	}

	now := timeNow().UTC()
	if !now.Before(record.Expiry) {
		return nil, domain.ErrExpired
	}

	if params.Strike != record.Strike || params.Premium != record.Premium {
		return nil, domain.ErrPriceMismatch
	}

	attached, err := parseAttached(params.AttachedValue)
	if err != nil {
		return nil, err
	}

	// the premium is never escrowed: collect it and forward it to the
	// seller in the same call
	premium := domain.MustBigInt(record.Premium)
	if err := im.payout.HandleIncoming(c, payout.IncomingParams{
		Module:        im.module,
		ChainId:       id.ChainId,
		From:          params.Caller,
		Currency:      domain.NativeCurrency,
		Amount:        premium,
		AttachedValue: attached,
	}); err != nil {
		return nil, err
	}
	if err := im.payout.HandleOutgoing(c, id.ChainId, record.Seller, domain.NativeCurrency, premium); err != nil {
		return nil, err
	}

	record.Buyer = params.Caller.ToLower()
	if err := im.puts.Upsert(c, record); err != nil {
		return nil, err
	}
	im.bus.Publish(c, &put.PurchasedEvent{Put: *record})
	return record, nil
}

func (im *impl) ExercisePut(c ctx.Ctx, id put.Id, caller domain.Address) (*put.Put, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(exchange.NftId{ChainId: id.ChainId, ContractAddress: id.ContractAddress, TokenId: id.TokenId}))
	defer release()

	record, err := im.puts.FindOne(c, id)
	if err != nil {
		return nil, err
	}
	if !record.Purchased() || !record.Buyer.Equals(caller) {
		return nil, domain.ErrNotBuyer
	}

	now := timeNow().UTC()
	if !now.Before(record.Expiry) {
		return nil, domain.ErrExpired
	}

	// exercising means the option holder delivers the token and takes the
	// strike net of the royalty and fee waterfall
	if _, err := im.payout.DistributeSale(c, payout.SaleParams{
		Module:         im.module,
		ChainId:        id.ChainId,
		TokenContract:  id.ContractAddress,
		TokenId:        id.TokenId,
		Currency:       domain.NativeCurrency,
		Amount:         domain.MustBigInt(record.Strike),
		FundsRecipient: record.Buyer,
	}); err != nil {
		return nil, err
	}

	if err := im.payout.TransferNft(c, im.module, id.ChainId, id.ContractAddress, record.Buyer, record.Seller, id.TokenId); err != nil {
		return nil, err
	}

	if err := im.puts.Remove(c, id); err != nil {
		return nil, err
	}

	im.bus.Publish(c, &put.ExercisedEvent{Put: *record})
	im.bus.Publish(c, &exchange.ExecutedEvent{
		Module:  im.module,
		ChainId: id.ChainId,
		UserA:   record.Buyer,
		UserB:   record.Seller,
		A:       exchange.Details{TokenContract: id.ContractAddress, TokenId: id.TokenId, Amount: "1"},
		B:       exchange.Details{TokenContract: domain.NativeCurrency, Amount: record.Strike},
		Time:    now,
	})
	return record, nil
}

func (im *impl) ReclaimPut(c ctx.Ctx, id put.Id, caller domain.Address) error {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(exchange.NftId{ChainId: id.ChainId, ContractAddress: id.ContractAddress, TokenId: id.TokenId}))
	defer release()

	record, err := im.puts.FindOne(c, id)
	if err != nil {
		return err
	}
	if !record.Seller.Equals(caller) {
		return domain.ErrNotSeller
	}
	if !record.Purchased() {
		return domain.ErrNotPurchased
	}

	now := timeNow().UTC()
	if now.Before(record.Expiry) {
		return domain.ErrNotExpired
	}

	if err := im.payout.HandleOutgoing(c, id.ChainId, record.Seller, domain.NativeCurrency, domain.MustBigInt(record.Strike)); err != nil {
		return err
	}

	if err := im.puts.Remove(c, id); err != nil {
		return err
	}
	im.bus.Publish(c, &put.ReclaimedEvent{Put: *record})
	return nil
}
