package usecase

import (
	"fmt"
	"math/big"
	"time"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/guard"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/auction"
	"github.com/modx-xyz/exchange/domain/exchange"
	"github.com/modx-xyz/exchange/domain/ledger"
	"github.com/modx-xyz/exchange/domain/payout"
)

var timeNow = time.Now

const (
	defaultTimeBuffer = 15 * time.Minute
	minTimeBuffer     = time.Minute
	maxTimeBuffer     = time.Hour

	defaultMinBidIncrementPct = 10
	maxMinBidIncrementPct     = 50
)

type AuctionUseCaseCfg struct {
	Auctions auction.Repo
	Payout   payout.Engine
	Erc20    ledger.Erc20
	Erc721   ledger.Erc721
	Bus      exchange.Dispatcher
	Module   domain.Address
	Escrow   domain.Address

	// TimeBuffer is the minimum time left after any bid; late bids extend
	// the auction to it. Clamped to [1 minute, 1 hour].
	TimeBuffer time.Duration
	// MinBidIncrementPct is the percentage a bid must beat the highest bid
	// by. Clamped to [1, 50].
	MinBidIncrementPct int64
}

type impl struct {
	auctions auction.Repo
	payout   payout.Engine
	erc20    ledger.Erc20
	erc721   ledger.Erc721
	bus      exchange.Dispatcher
	module   domain.Address
	escrow   domain.Address
	buffer   time.Duration
	minPct   int64
	guard    *guard.Guard
}

func New(cfg *AuctionUseCaseCfg) auction.UseCase {
	buffer := cfg.TimeBuffer
	if buffer == 0 {
		buffer = defaultTimeBuffer
	}
	if buffer < minTimeBuffer {
		buffer = minTimeBuffer
	}
	if buffer > maxTimeBuffer {
		buffer = maxTimeBuffer
	}

	minPct := cfg.MinBidIncrementPct
	if minPct <= 0 {
		minPct = defaultMinBidIncrementPct
	}
	if minPct > maxMinBidIncrementPct {
		minPct = maxMinBidIncrementPct
	}

	return &impl{
		auctions: cfg.Auctions,
		payout:   cfg.Payout,
		erc20:    cfg.Erc20,
		erc721:   cfg.Erc721,
		bus:      cfg.Bus,
		module:   cfg.Module.ToLower(),
		escrow:   cfg.Escrow.ToLower(),
		buffer:   buffer,
		minPct:   minPct,
		guard:    guard.New(),
	}
}

func nftKey(id auction.Id) string {
	return fmt.Sprintf("%d:%s:%s", id.ChainId, id.ContractAddress.ToLower(), id.TokenId)
}

func (im *impl) FindAll(c ctx.Ctx, opts ...auction.FindAllOptionsFunc) ([]*auction.Auction, error) {
	return im.auctions.FindAll(c, opts...)
}

func (im *impl) GetAuction(c ctx.Ctx, id auction.Id) (*auction.Auction, *auction.Ongoing, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	record, err := im.auctions.FindOne(c, id)
	if err != nil {
		return nil, nil, err
	}
	ongoing, err := im.auctions.FindOngoing(c, id)
	if err == domain.ErrNotFound {
		return record, nil, nil
	} else if err != nil {
		return nil, nil, err
	}
	return record, ongoing, nil
}

func (im *impl) isOwnerOrOperator(c ctx.Ctx, id auction.Id, caller domain.Address) (domain.Address, bool, error) {
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

func validateParams(now time.Time, params auction.CreateAuctionParams) error {
	if _, err := domain.ParseAmount(params.ReservePrice); err != nil {
		return domain.ErrInvalidReservePrice
	}
	if params.DurationSec <= 0 {
		return domain.ErrInvalidDuration
	}
	if !params.FindersFeeBps.Valid() || !params.ListingFeeBps.Valid() {
		return domain.ErrInvalidFeeBps
	}
	if (params.ListingFeeBps > 0) != !params.ListingFeeTo.IsEmpty() {
		return domain.ErrInvalidListingFee
	}
	if params.TokenGate.IsEmpty() != (params.TokenGateMin == "" || params.TokenGateMin == "0") {
		return domain.ErrInvalidTokenGate
	}
	if params.StartTime != nil && !params.StartTime.After(now) {
		return domain.ErrInvalidStartTime
	}
	if params.Expiry != nil {
		if !params.Expiry.After(now) {
			return domain.ErrInvalidExpiry
		}
		if params.StartTime != nil && !params.StartTime.Before(*params.Expiry) {
			return domain.ErrInvalidExpiry
		}
	}
	return nil
}

func (im *impl) CreateAuction(c ctx.Ctx, id auction.Id, params auction.CreateAuctionParams) (*auction.Auction, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(id))
	defer release()

	now := timeNow().UTC()
	if err := validateParams(now, params); err != nil {
		return nil, err
	}

	prev, err := im.auctions.FindOne(c, id)
	if err == nil {
		if _, err := im.auctions.FindOngoing(c, id); err == nil {
			return nil, domain.ErrAuctionStarted
		} else if err != domain.ErrNotFound {
			return nil, err
		}
	} else if err != domain.ErrNotFound {
		return nil, err
	}

	if _, ok, err := im.isOwnerOrOperator(c, id, params.Caller); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrNotTokenOwnerOrOperator
	}

	if prev != nil {
		im.bus.Publish(c, &auction.CanceledEvent{Auction: *prev})
	}

	record := &auction.Auction{
		ChainId:         id.ChainId,
		ContractAddress: id.ContractAddress,
		TokenId:         id.TokenId,
		Seller:          params.Caller.ToLower(),
		ReservePrice:    params.ReservePrice,
		DurationSec:     params.DurationSec,
		CreatedAt:       now,
	}
	record.Features.SetCurrency(params.Currency)
	record.Features.SetStartTime(params.StartTime)
	record.Features.SetExpiry(params.Expiry)
	record.Features.SetFundsRecipient(params.FundsRecipient)
	record.Features.SetFindersFee(params.FindersFeeBps)
	record.Features.SetListingFee(params.ListingFeeBps, params.ListingFeeTo)
	record.Features.SetTokenGate(params.TokenGate, params.TokenGateMin)

	if err := im.auctions.Upsert(c, record); err != nil {
		return nil, err
	}
	im.bus.Publish(c, &auction.CreatedEvent{Auction: *record})
	return record, nil
}

func (im *impl) SetAuctionReservePrice(c ctx.Ctx, id auction.Id, caller domain.Address, reservePrice string) (*auction.Auction, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(id))
	defer release()

	record, err := im.auctions.FindOne(c, id)
	if err != nil {
		return nil, err
	}
	if !record.Seller.Equals(caller) {
		return nil, domain.ErrNotSeller
	}
	if _, err := im.auctions.FindOngoing(c, id); err == nil {
		return nil, domain.ErrAuctionStarted
	} else if err != domain.ErrNotFound {
		return nil, err
	}
	if _, err := domain.ParseAmount(reservePrice); err != nil {
		return nil, domain.ErrInvalidReservePrice
	}

	record.ReservePrice = reservePrice

	if err := im.auctions.Upsert(c, record); err != nil {
		return nil, err
	}
	im.bus.Publish(c, &auction.ReservePriceUpdatedEvent{Auction: *record})
	return record, nil
}

func (im *impl) CancelAuction(c ctx.Ctx, id auction.Id, caller domain.Address) error {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(id))
	defer release()

	record, err := im.auctions.FindOne(c, id)
	if err != nil {
		return err
	}
	if _, err := im.auctions.FindOngoing(c, id); err == nil {
		return domain.ErrAuctionStarted
	} else if err != domain.ErrNotFound {
		return err
	}

	owner, err := im.erc721.OwnerOf(c, id.ContractAddress, id.TokenId)
	if err != nil {
		return err
	}
	// while the seller still holds the token only they (or an operator) may
	// cancel; once the token moved, the listing is stale and anyone may
	// clean it up
	if owner.Equals(record.Seller) {
		if _, ok, err := im.isOwnerOrOperator(c, id, caller); err != nil {
			return err
		} else if !ok && !record.Seller.Equals(caller) {
			return domain.ErrNotSeller
		}
	}

	if err := im.auctions.Remove(c, id); err != nil {
		return err
	}
	im.bus.Publish(c, &auction.CanceledEvent{Auction: *record})
	return nil
}

// minBid is the lowest acceptable next bid over highest, with the
// increment floored.
func (im *impl) minBid(highest *big.Int) *big.Int {
	inc := new(big.Int).Mul(highest, big.NewInt(im.minPct))
	inc.Div(inc, domain.Big100)
	return inc.Add(inc, highest)
}

func (im *impl) CreateBid(c ctx.Ctx, id auction.Id, params auction.CreateBidParams) (*auction.Ongoing, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(id))
	defer release()

	record, err := im.auctions.FindOne(c, id)
	if err != nil {
		return nil, err
	}

	amount, err := domain.ParseAmount(params.Amount)
	if err != nil {
		return nil, err
	}

	now := timeNow().UTC()
	if start, ok := record.Features.StartTime(); ok && now.Before(start) {
		return nil, domain.ErrNotStarted
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

	attached := new(big.Int)
	if params.AttachedValue != "" {
		if attached, err = domain.ParseAmount(params.AttachedValue); err != nil {
			return nil, err
		}
	}
	currency := record.Features.Currency()

	ongoing, err := im.auctions.FindOngoing(c, id)
	if err == domain.ErrNotFound {
		return im.firstBid(c, record, params, amount, attached, currency, now)
	} else if err != nil {
		return nil, err
	}

	end := record.EndTime(ongoing)
	if !now.Before(end) {
		return nil, domain.ErrAuctionEnded
	}
	if amount.Cmp(im.minBid(domain.MustBigInt(ongoing.HighestBid))) < 0 {
		return nil, domain.ErrMinimumBidNotMet
	}

	if err := im.payout.HandleIncoming(c, payout.IncomingParams{
		Module:        im.module,
		ChainId:       record.ChainId,
		From:          params.Caller,
		Currency:      currency,
		Amount:        amount,
		AttachedValue: attached,
	}); err != nil {
		return nil, err
	}

	// refund the outbid bidder; the engine absorbs hostile receivers by
	// wrapping, so the new bid can never be blocked
	if err := im.payout.HandleOutgoing(c, record.ChainId, ongoing.HighestBidder, currency, domain.MustBigInt(ongoing.HighestBid)); err != nil {
		return nil, err
	}

	extended := false
	if remaining := end.Sub(now); remaining < im.buffer {
		record.DurationSec += int64((im.buffer - remaining) / time.Second)
		if err := im.auctions.Upsert(c, record); err != nil {
			return nil, err
		}
		extended = true
	}

	ongoing.HighestBid = params.Amount
	ongoing.HighestBidder = params.Caller.ToLower()
	ongoing.Finder = params.Finder.ToLower()

	if err := im.auctions.UpsertOngoing(c, ongoing); err != nil {
		return nil, err
	}
	im.bus.Publish(c, &auction.BidEvent{Auction: *record, Ongoing: *ongoing, Extended: extended})
	return ongoing, nil
}

// firstBid starts the clock and escrows the NFT.
func (im *impl) firstBid(c ctx.Ctx, record *auction.Auction, params auction.CreateBidParams, amount, attached *big.Int, currency domain.Address, now time.Time) (*auction.Ongoing, error) {
	if expiry, ok := record.Features.Expiry(); ok && !now.Before(expiry) {
		return nil, domain.ErrExpired
	}
	if amount.Cmp(domain.MustBigInt(record.ReservePrice)) < 0 {
		return nil, domain.ErrMinimumBidNotMet
	}

	id := record.ToId()
	owner, err := im.erc721.OwnerOf(c, id.ContractAddress, id.TokenId)
	if err != nil {
		return nil, err
	}
	if !owner.Equals(record.Seller) {
		return nil, domain.ErrNotTokenOwnerOrOperator
	}

	if err := im.payout.HandleIncoming(c, payout.IncomingParams{
		Module:        im.module,
		ChainId:       record.ChainId,
		From:          params.Caller,
		Currency:      currency,
		Amount:        amount,
		AttachedValue: attached,
	}); err != nil {
		return nil, err
	}

	if err := im.payout.TransferNft(c, im.module, record.ChainId, id.ContractAddress, owner, im.escrow, id.TokenId); err != nil {
		return nil, err
	}

	ongoing := &auction.Ongoing{
		ChainId:         id.ChainId,
		ContractAddress: id.ContractAddress,
		TokenId:         id.TokenId,
		HighestBid:      params.Amount,
		HighestBidder:   params.Caller.ToLower(),
		Finder:          params.Finder.ToLower(),
		FirstBidTime:    now,
	}
	if err := im.auctions.UpsertOngoing(c, ongoing); err != nil {
		return nil, err
	}
	im.bus.Publish(c, &auction.BidEvent{Auction: *record, Ongoing: *ongoing, FirstBid: true})
	return ongoing, nil
}

func (im *impl) SettleAuction(c ctx.Ctx, id auction.Id) (*auction.Auction, *auction.Ongoing, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	release := im.guard.Lock(nftKey(id))
	defer release()

	record, err := im.auctions.FindOne(c, id)
	if err != nil {
		return nil, nil, err
	}
	ongoing, err := im.auctions.FindOngoing(c, id)
	if err == domain.ErrNotFound {
		return nil, nil, domain.ErrAuctionNotStarted
	} else if err != nil {
		return nil, nil, err
	}

	now := timeNow().UTC()
	if now.Before(record.EndTime(ongoing)) {
		return nil, nil, domain.ErrAuctionNotEnded
	}

	currency := record.Features.Currency()
	amount := domain.MustBigInt(ongoing.HighestBid)

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
		Finder:         ongoing.Finder,
	}); err != nil {
		return nil, nil, err
	}

	// the NFT sits in escrow since the first bid; release it to the winner
	if err := im.erc721.TransferFrom(c, id.ContractAddress, im.escrow, im.escrow, ongoing.HighestBidder, id.TokenId); err != nil {
		return nil, nil, err
	}

	if err := im.auctions.RemoveBoth(c, id); err != nil {
		return nil, nil, err
	}

	im.bus.Publish(c, &auction.EndedEvent{Auction: *record, Ongoing: *ongoing, Finder: ongoing.Finder})
	im.bus.Publish(c, &exchange.ExecutedEvent{
		Module:  im.module,
		ChainId: id.ChainId,
		UserA:   record.Seller,
		UserB:   ongoing.HighestBidder,
		A:       exchange.Details{TokenContract: id.ContractAddress, TokenId: id.TokenId, Amount: "1"},
		B:       exchange.Details{TokenContract: currency, Amount: ongoing.HighestBid},
		Time:    now,
	})
	return record, ongoing, nil
}
