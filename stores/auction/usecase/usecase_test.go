package usecase

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/auction"
	"github.com/modx-xyz/exchange/domain/registry"
	ledgersvc "github.com/modx-xyz/exchange/service/ledger"
	payoutuc "github.com/modx-xyz/exchange/stores/payout/usecase"
)

var mockCtx = ctx.Background()

const chain = domain.ChainId(1)

var (
	nftContract = domain.Address("0x10f7")
	tokenId     = domain.TokenId("42")
	module      = domain.Address("0xa5c")
	escrow      = domain.Address("0xe5c")
	seller      = domain.Address("0x5e11e7")
	bidderA     = domain.Address("0xb1dde3a")
	bidderB     = domain.Address("0xb1dde3b")
	royaltyTo   = domain.Address("0x707a17")
	protocolTo  = domain.Address("0xfee")
)

func eth(s string) *big.Int {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d.Mul(decimal.New(1, 18)).BigInt()
}

type memAuctionRepo struct {
	auctions map[auction.Id]*auction.Auction
	ongoings map[auction.Id]*auction.Ongoing
}

func (r *memAuctionRepo) FindAll(c ctx.Ctx, opts ...auction.FindAllOptionsFunc) ([]*auction.Auction, error) {
	res := []*auction.Auction{}
	for _, a := range r.auctions {
		res = append(res, a)
	}
	return res, nil
}

func (r *memAuctionRepo) FindOne(c ctx.Ctx, id auction.Id) (*auction.Auction, error) {
	if a, ok := r.auctions[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memAuctionRepo) Upsert(c ctx.Ctx, a *auction.Auction) error {
	cp := *a
	r.auctions[a.ToId()] = &cp
	return nil
}

func (r *memAuctionRepo) Remove(c ctx.Ctx, id auction.Id) error {
	if _, ok := r.auctions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.auctions, id)
	return nil
}

func (r *memAuctionRepo) FindOngoing(c ctx.Ctx, id auction.Id) (*auction.Ongoing, error) {
	if o, ok := r.ongoings[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memAuctionRepo) UpsertOngoing(c ctx.Ctx, o *auction.Ongoing) error {
	cp := *o
	r.ongoings[o.ToId()] = &cp
	return nil
}

func (r *memAuctionRepo) RemoveOngoing(c ctx.Ctx, id auction.Id) error {
	if _, ok := r.ongoings[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.ongoings, id)
	return nil
}

func (r *memAuctionRepo) RemoveBoth(c ctx.Ctx, id auction.Id) error {
	if err := r.Remove(mockCtx, id); err != nil {
		return err
	}
	delete(r.ongoings, id)
	return nil
}

type fakeRegistry struct {
	approvals map[domain.Address]bool
	feeBps    domain.Bps
	feeTo     domain.Address
}

func (r *fakeRegistry) IsModuleApproved(c ctx.Ctx, user, mod domain.Address) (bool, error) {
	return r.approvals[user.ToLower()], nil
}

func (r *fakeRegistry) SetModuleApproval(c ctx.Ctx, user, mod domain.Address, approved bool) error {
	r.approvals[user.ToLower()] = approved
	return nil
}

func (r *fakeRegistry) GetFeeAmount(c ctx.Ctx, mod domain.Address, amount *big.Int) (*big.Int, error) {
	return r.feeBps.Of(amount), nil
}

func (r *fakeRegistry) FeeRecipient(c ctx.Ctx, mod domain.Address) (domain.Address, error) {
	return r.feeTo, nil
}

func (r *fakeRegistry) SetFeeSetting(c ctx.Ctx, setting *registry.FeeSetting) error { return nil }

func (r *fakeRegistry) GetFeeSettings(c ctx.Ctx) ([]*registry.FeeSetting, error) { return nil, nil }

type fakeRoyalty struct {
	recipients []domain.Address
	bps        domain.Bps
}

func (r *fakeRoyalty) GetRoyalty(c ctx.Ctx, chainId domain.ChainId, contract domain.Address, id domain.TokenId, amount *big.Int) ([]domain.Address, []*big.Int, error) {
	if len(r.recipients) == 0 || r.bps == 0 {
		return nil, nil, nil
	}
	amounts := make([]*big.Int, len(r.recipients))
	for i := range r.recipients {
		amounts[i] = r.bps.Of(amount)
	}
	return r.recipients, amounts, nil
}

type recordingBus struct {
	events []interface{}
}

func (b *recordingBus) Publish(c ctx.Ctx, event interface{}) {
	b.events = append(b.events, event)
}

func (b *recordingBus) Close() {}

type testsuite struct {
	suite.Suite
	ledger   *ledgersvc.InMemory
	repo     *memAuctionRepo
	registry *fakeRegistry
	royalty  *fakeRoyalty
	bus      *recordingBus
	im       auction.UseCase
	now      time.Time
	id       auction.Id
}

func (ts *testsuite) SetupTest() {
	ts.ledger = ledgersvc.New()
	ts.repo = &memAuctionRepo{
		auctions: map[auction.Id]*auction.Auction{},
		ongoings: map[auction.Id]*auction.Ongoing{},
	}
	ts.registry = &fakeRegistry{approvals: map[domain.Address]bool{
		seller: true, bidderA: true, bidderB: true,
	}}
	ts.royalty = &fakeRoyalty{}
	ts.bus = &recordingBus{}

	engine := payoutuc.New(&payoutuc.Cfg{
		Native:   ts.ledger.Native(),
		Erc20:    ts.ledger.Erc20(),
		Erc721:   ts.ledger.Erc721(),
		Wrapped:  ts.ledger.WrappedNative(),
		Royalty:  ts.royalty,
		Registry: ts.registry,
		Escrow:   escrow,
	})
	ts.im = New(&AuctionUseCaseCfg{
		Auctions: ts.repo,
		Payout:   engine,
		Erc20:    ts.ledger.Erc20(),
		Erc721:   ts.ledger.Erc721(),
		Bus:      ts.bus,
		Module:   module,
		Escrow:   escrow,
	})

	ts.now = time.Now().UTC()
	timeNow = func() time.Time { return ts.now }

	ts.id = auction.Id{ChainId: chain, ContractAddress: nftContract, TokenId: tokenId}
	ts.ledger.MintNft(nftContract, tokenId, seller)
	ts.ledger.SetApprovalForAll(nftContract, seller, escrow, true)
	ts.ledger.MintNative(bidderA, eth("10"))
	ts.ledger.MintNative(bidderB, eth("10"))
}

func (ts *testsuite) TearDownTest() {
	timeNow = time.Now
}

func Test(t *testing.T) {
	suite.Run(t, new(testsuite))
}

func (ts *testsuite) createAuction(reserve string, durationSec int64) *auction.Auction {
	record, err := ts.im.CreateAuction(mockCtx, ts.id, auction.CreateAuctionParams{
		Caller:       seller,
		ReservePrice: reserve,
		DurationSec:  durationSec,
	})
	ts.Require().NoError(err)
	return record
}

func (ts *testsuite) bid(caller domain.Address, amount *big.Int) (*auction.Ongoing, error) {
	return ts.im.CreateBid(mockCtx, ts.id, auction.CreateBidParams{
		Caller:        caller,
		Amount:        amount.String(),
		AttachedValue: amount.String(),
	})
}

func (ts *testsuite) balance(account domain.Address) *big.Int {
	b, err := ts.ledger.NativeBalanceOf(mockCtx, account)
	ts.Require().NoError(err)
	return b
}

func (ts *testsuite) TestCreateAuctionValidations() {
	params := auction.CreateAuctionParams{Caller: seller, ReservePrice: "100", DurationSec: 3600}

	p := params
	p.ReservePrice = "nope"
	_, err := ts.im.CreateAuction(mockCtx, ts.id, p)
	ts.Equal(domain.ErrInvalidReservePrice, err)

	p = params
	p.DurationSec = 0
	_, err = ts.im.CreateAuction(mockCtx, ts.id, p)
	ts.Equal(domain.ErrInvalidDuration, err)

	p = params
	p.ListingFeeBps = 100
	_, err = ts.im.CreateAuction(mockCtx, ts.id, p)
	ts.Equal(domain.ErrInvalidListingFee, err)

	p = params
	p.TokenGate = domain.Address("0x6a7e")
	_, err = ts.im.CreateAuction(mockCtx, ts.id, p)
	ts.Equal(domain.ErrInvalidTokenGate, err)

	p = params
	past := ts.now.Add(-time.Minute)
	p.StartTime = &past
	_, err = ts.im.CreateAuction(mockCtx, ts.id, p)
	ts.Equal(domain.ErrInvalidStartTime, err)

	p = params
	start := ts.now.Add(2 * time.Hour)
	expiry := ts.now.Add(time.Hour)
	p.StartTime = &start
	p.Expiry = &expiry
	_, err = ts.im.CreateAuction(mockCtx, ts.id, p)
	ts.Equal(domain.ErrInvalidExpiry, err)

	p = params
	p.Caller = bidderA
	_, err = ts.im.CreateAuction(mockCtx, ts.id, p)
	ts.Equal(domain.ErrNotTokenOwnerOrOperator, err)
}

func (ts *testsuite) TestSetReservePriceOnlyBeforeStart() {
	ts.createAuction(eth("0.1").String(), 3600)

	_, err := ts.im.SetAuctionReservePrice(mockCtx, ts.id, bidderA, "1")
	ts.Equal(domain.ErrNotSeller, err)

	record, err := ts.im.SetAuctionReservePrice(mockCtx, ts.id, seller, eth("0.2").String())
	ts.NoError(err)
	ts.Equal(eth("0.2").String(), record.ReservePrice)

	_, err = ts.bid(bidderA, eth("0.2"))
	ts.Require().NoError(err)

	_, err = ts.im.SetAuctionReservePrice(mockCtx, ts.id, seller, eth("0.3").String())
	ts.Equal(domain.ErrAuctionStarted, err)
}

func (ts *testsuite) TestFirstBidEscrowsNftAndStartsClock() {
	ts.createAuction(eth("0.1").String(), 3600)

	// below reserve
	_, err := ts.bid(bidderA, eth("0.05"))
	ts.Equal(domain.ErrMinimumBidNotMet, err)

	ongoing, err := ts.bid(bidderA, eth("0.1"))
	ts.Require().NoError(err)
	ts.Equal(ts.now, ongoing.FirstBidTime)

	owner, err := ts.ledger.OwnerOf(mockCtx, nftContract, tokenId)
	ts.NoError(err)
	ts.True(owner.Equals(escrow))
	ts.Equal(eth("0.1"), ts.balance(escrow))

	ev := ts.bus.events[len(ts.bus.events)-1].(*auction.BidEvent)
	ts.True(ev.FirstBid)
}

func (ts *testsuite) TestBidMinimumIncrementBoundary() {
	ts.createAuction(eth("0.1").String(), 3600)
	_, err := ts.bid(bidderA, eth("1"))
	ts.Require().NoError(err)

	// default increment is 10%; one unit below the floor loses
	min := ts.im.(*impl).minBid(eth("1"))
	_, err = ts.bid(bidderB, new(big.Int).Sub(min, domain.Big1))
	ts.Equal(domain.ErrMinimumBidNotMet, err)

	// exactly the minimum wins, and the previous bidder is made whole
	_, err = ts.bid(bidderB, min)
	ts.NoError(err)
	ts.Equal(eth("10"), ts.balance(bidderA))
}

func (ts *testsuite) TestBidExtension() {
	// duration 3600s, buffer 900s, bid lands with 100s remaining:
	// duration must grow by exactly 800s
	ts.createAuction(eth("0.1").String(), 3600)
	_, err := ts.bid(bidderA, eth("0.1"))
	ts.Require().NoError(err)

	ts.now = ts.now.Add(3500 * time.Second)
	_, err = ts.bid(bidderB, eth("0.2"))
	ts.Require().NoError(err)

	record, _, err := ts.im.GetAuction(mockCtx, ts.id)
	ts.Require().NoError(err)
	ts.Equal(int64(3900), record.DurationSec)

	ev := ts.bus.events[len(ts.bus.events)-1].(*auction.BidEvent)
	ts.True(ev.Extended)
}

func (ts *testsuite) TestBidAfterEnd() {
	ts.createAuction(eth("0.1").String(), 3600)
	_, err := ts.bid(bidderA, eth("0.1"))
	ts.Require().NoError(err)

	ts.now = ts.now.Add(3601 * time.Second)
	_, err = ts.bid(bidderB, eth("1"))
	ts.Equal(domain.ErrAuctionEnded, err)
}

func (ts *testsuite) TestCancelAuction() {
	ts.createAuction(eth("0.1").String(), 3600)

	ts.Equal(domain.ErrNotSeller, ts.im.CancelAuction(mockCtx, ts.id, bidderA))
	ts.NoError(ts.im.CancelAuction(mockCtx, ts.id, seller))
	ts.Equal(domain.ErrNotFound, ts.im.CancelAuction(mockCtx, ts.id, seller))
}

func (ts *testsuite) TestCancelAuctionAfterStartRejected() {
	ts.createAuction(eth("0.1").String(), 3600)
	_, err := ts.bid(bidderA, eth("0.1"))
	ts.Require().NoError(err)

	ts.Equal(domain.ErrAuctionStarted, ts.im.CancelAuction(mockCtx, ts.id, seller))
}

func (ts *testsuite) TestAnyoneMayCancelOrphanedAuction() {
	ts.createAuction(eth("0.1").String(), 3600)

	other := domain.Address("0x07e3")
	ts.Require().NoError(ts.ledger.Erc721TransferFrom(mockCtx, nftContract, seller, seller, other, tokenId))

	ts.NoError(ts.im.CancelAuction(mockCtx, ts.id, bidderB))
}

func (ts *testsuite) TestSettleAuctionScenario() {
	// reserve 0.1, bids 0.1 -> 0.5 -> 1.0, protocol fee 0.01%, royalty 5%
	ts.registry.feeBps = 1
	ts.registry.feeTo = protocolTo
	ts.royalty.recipients = []domain.Address{royaltyTo}
	ts.royalty.bps = 500

	ts.createAuction(eth("0.1").String(), 3600)

	_, err := ts.bid(bidderA, eth("0.1"))
	ts.Require().NoError(err)
	ts.now = ts.now.Add(10 * time.Minute)
	_, err = ts.bid(bidderB, eth("0.5"))
	ts.Require().NoError(err)
	ts.now = ts.now.Add(10 * time.Minute)
	_, err = ts.bid(bidderA, eth("1"))
	ts.Require().NoError(err)

	// losing bids fully refunded along the way
	ts.Equal(eth("10"), ts.balance(bidderB))
	ts.Equal(eth("1"), ts.balance(escrow))

	_, _, err = ts.im.SettleAuction(mockCtx, ts.id)
	ts.Equal(domain.ErrAuctionNotEnded, err)

	ts.now = ts.now.Add(time.Hour)
	record, ongoing, err := ts.im.SettleAuction(mockCtx, ts.id)
	ts.Require().NoError(err)
	ts.Equal(eth("1").String(), ongoing.HighestBid)
	ts.True(record.Seller.Equals(seller))

	ts.Equal(eth("0.05"), ts.balance(royaltyTo))
	ts.Equal(eth("0.000095"), ts.balance(protocolTo))
	ts.Equal(eth("0.949905"), ts.balance(seller))
	ts.Equal("0", ts.balance(escrow).String())

	owner, err := ts.ledger.OwnerOf(mockCtx, nftContract, tokenId)
	ts.NoError(err)
	ts.True(owner.Equals(bidderA))

	// both records deleted together
	_, _, err = ts.im.SettleAuction(mockCtx, ts.id)
	ts.Equal(domain.ErrNotFound, err)
}

func (ts *testsuite) TestSettleUnstartedAuction() {
	ts.createAuction(eth("0.1").String(), 3600)

	_, _, err := ts.im.SettleAuction(mockCtx, ts.id)
	ts.Equal(domain.ErrAuctionNotStarted, err)
}

func (ts *testsuite) TestTokenGate() {
	gateToken := domain.Address("0x6a7e")
	_, err := ts.im.CreateAuction(mockCtx, ts.id, auction.CreateAuctionParams{
		Caller:       seller,
		ReservePrice: eth("0.1").String(),
		DurationSec:  3600,
		TokenGate:    gateToken,
		TokenGateMin: "100",
	})
	ts.Require().NoError(err)

	_, err = ts.bid(bidderA, eth("0.1"))
	ts.Equal(domain.ErrTokenGateInsufficient, err)

	ts.ledger.MintErc20(gateToken, bidderA, big.NewInt(100))
	_, err = ts.bid(bidderA, eth("0.1"))
	ts.NoError(err)
}

func (ts *testsuite) TestReplaceUnstartedAuctionCancelsExplicitly() {
	ts.createAuction(eth("0.1").String(), 3600)
	ts.createAuction(eth("0.2").String(), 3600)

	ts.Require().Len(ts.bus.events, 3)
	ts.IsType(&auction.CreatedEvent{}, ts.bus.events[0])
	ts.IsType(&auction.CanceledEvent{}, ts.bus.events[1])
	ts.IsType(&auction.CreatedEvent{}, ts.bus.events[2])

	_, err := ts.bid(bidderA, eth("0.2"))
	ts.Require().NoError(err)

	_, err = ts.im.CreateAuction(mockCtx, ts.id, auction.CreateAuctionParams{
		Caller:       seller,
		ReservePrice: eth("0.3").String(),
		DurationSec:  3600,
	})
	ts.Equal(domain.ErrAuctionStarted, err)
}
