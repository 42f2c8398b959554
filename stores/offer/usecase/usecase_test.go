package usecase

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/exchange"
	"github.com/modx-xyz/exchange/domain/offer"
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
	owner       = domain.Address("0x033e7")
	buyer       = domain.Address("0xb0167")
	finder      = domain.Address("0xf19de7")
	royaltyTo   = domain.Address("0x707a17")
)

func eth(s string) *big.Int {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d.Mul(decimal.New(1, 18)).BigInt()
}

type memOfferRepo struct {
	offers map[offer.Id]*offer.Offer
	nextId uint64
}

func (r *memOfferRepo) FindAll(c ctx.Ctx, opts ...offer.FindAllOptionsFunc) ([]*offer.Offer, error) {
	res := []*offer.Offer{}
	for _, o := range r.offers {
		res = append(res, o)
	}
	return res, nil
}

func (r *memOfferRepo) FindOne(c ctx.Ctx, id offer.Id) (*offer.Offer, error) {
	if o, ok := r.offers[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memOfferRepo) Upsert(c ctx.Ctx, o *offer.Offer) error {
	cp := *o
	r.offers[o.ToId()] = &cp
	return nil
}

func (r *memOfferRepo) Remove(c ctx.Ctx, id offer.Id) error {
	if _, ok := r.offers[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.offers, id)
	return nil
}

func (r *memOfferRepo) NextOfferId(c ctx.Ctx, nftId exchange.NftId) (uint64, error) {
	r.nextId++
	return r.nextId, nil
}

type fakeRegistry struct {
	approvals map[domain.Address]bool
}

func (r *fakeRegistry) IsModuleApproved(c ctx.Ctx, user, mod domain.Address) (bool, error) {
	return r.approvals[user.ToLower()], nil
}

func (r *fakeRegistry) SetModuleApproval(c ctx.Ctx, user, mod domain.Address, approved bool) error {
	r.approvals[user.ToLower()] = approved
	return nil
}

func (r *fakeRegistry) GetFeeAmount(c ctx.Ctx, mod domain.Address, amount *big.Int) (*big.Int, error) {
	return new(big.Int), nil
}

func (r *fakeRegistry) FeeRecipient(c ctx.Ctx, mod domain.Address) (domain.Address, error) {
	return domain.EmptyAddress, nil
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
	ledger  *ledgersvc.InMemory
	repo    *memOfferRepo
	royalty *fakeRoyalty
	bus     *recordingBus
	im      offer.UseCase
	now     time.Time
	nftId   exchange.NftId
}

func (ts *testsuite) SetupTest() {
	ts.ledger = ledgersvc.New()
	ts.repo = &memOfferRepo{offers: map[offer.Id]*offer.Offer{}}
	ts.royalty = &fakeRoyalty{}
	ts.bus = &recordingBus{}

	engine := payoutuc.New(&payoutuc.Cfg{
		Native:   ts.ledger.Native(),
		Erc20:    ts.ledger.Erc20(),
		Erc721:   ts.ledger.Erc721(),
		Wrapped:  ts.ledger.WrappedNative(),
		Royalty:  ts.royalty,
		Registry: &fakeRegistry{approvals: map[domain.Address]bool{owner: true, buyer: true}},
		Escrow:   escrow,
	})
	ts.im = New(&OfferUseCaseCfg{
		Offers: ts.repo,
		Payout: engine,
		Erc721: ts.ledger.Erc721(),
		Bus:    ts.bus,
		Module: module,
	})

	ts.now = time.Now().UTC()
	timeNow = func() time.Time { return ts.now }

	ts.nftId = exchange.NftId{ChainId: chain, ContractAddress: nftContract, TokenId: tokenId}
	ts.ledger.MintNft(nftContract, tokenId, owner)
	ts.ledger.SetApprovalForAll(nftContract, owner, escrow, true)
	ts.ledger.MintNative(buyer, eth("10"))
}

func (ts *testsuite) TearDownTest() {
	timeNow = time.Now
}

func Test(t *testing.T) {
	suite.Run(t, new(testsuite))
}

func (ts *testsuite) createOffer(amount string) *offer.Offer {
	record, err := ts.im.CreateOffer(mockCtx, ts.nftId, offer.CreateOfferParams{
		Caller:        buyer,
		Amount:        amount,
		AttachedValue: amount,
	})
	ts.Require().NoError(err)
	return record
}

func (ts *testsuite) balance(account domain.Address) *big.Int {
	b, err := ts.ledger.NativeBalanceOf(mockCtx, account)
	ts.Require().NoError(err)
	return b
}

func (ts *testsuite) TestCreateOfferEscrowsFunds() {
	record := ts.createOffer(eth("1").String())
	ts.Equal(uint64(1), record.OfferId)

	ts.Equal(eth("9"), ts.balance(buyer))
	ts.Equal(eth("1"), ts.balance(escrow))

	// a second concurrent offer stacks on top
	ts.createOffer(eth("2").String())
	ts.Equal(eth("7"), ts.balance(buyer))
	ts.Equal(eth("3"), ts.balance(escrow))
}

func (ts *testsuite) TestCreateOfferInsufficientValue() {
	_, err := ts.im.CreateOffer(mockCtx, ts.nftId, offer.CreateOfferParams{
		Caller:        buyer,
		Amount:        eth("1").String(),
		AttachedValue: eth("0.5").String(),
	})
	ts.Equal(domain.ErrInsufficientValue, err)
	ts.Empty(ts.repo.offers)
	ts.Equal(eth("10"), ts.balance(buyer))
}

func (ts *testsuite) TestSetOfferAmountMovesExactDelta() {
	record := ts.createOffer(eth("1").String())

	_, err := ts.im.SetOfferAmount(mockCtx, record.ToId(), owner, eth("2").String(), eth("1").String())
	ts.Equal(domain.ErrNotBuyer, err)

	// increase pulls only the difference
	_, err = ts.im.SetOfferAmount(mockCtx, record.ToId(), buyer, eth("2").String(), eth("1").String())
	ts.Require().NoError(err)
	ts.Equal(eth("8"), ts.balance(buyer))
	ts.Equal(eth("2"), ts.balance(escrow))

	// decrease refunds only the difference
	_, err = ts.im.SetOfferAmount(mockCtx, record.ToId(), buyer, eth("0.5").String(), "")
	ts.Require().NoError(err)
	ts.Equal(eth("9.5"), ts.balance(buyer))
	ts.Equal(eth("0.5"), ts.balance(escrow))

	updated, err := ts.im.GetOffer(mockCtx, record.ToId())
	ts.NoError(err)
	ts.Equal(eth("0.5").String(), updated.Amount)
}

func (ts *testsuite) TestCancelOfferRefunds() {
	record := ts.createOffer(eth("1").String())

	ts.Equal(domain.ErrNotBuyer, ts.im.CancelOffer(mockCtx, record.ToId(), owner))

	ts.NoError(ts.im.CancelOffer(mockCtx, record.ToId(), buyer))
	ts.Equal(eth("10"), ts.balance(buyer))
	ts.Equal("0", ts.balance(escrow).String())

	// already gone
	ts.Equal(domain.ErrNotFound, ts.im.CancelOffer(mockCtx, record.ToId(), buyer))
}

func (ts *testsuite) TestFillOfferWaterfall() {
	// royalty 5%, finders fee 10%, no protocol fee
	ts.royalty.recipients = []domain.Address{royaltyTo}
	ts.royalty.bps = 500

	record, err := ts.im.CreateOffer(mockCtx, ts.nftId, offer.CreateOfferParams{
		Caller:        buyer,
		Amount:        eth("1").String(),
		AttachedValue: eth("1").String(),
		FindersFeeBps: 1000,
	})
	ts.Require().NoError(err)

	_, err = ts.im.FillOffer(mockCtx, record.ToId(), offer.FillOfferParams{
		Caller: owner,
		Amount: eth("1").String(),
		Finder: finder,
	})
	ts.Require().NoError(err)

	ts.Equal(eth("0.05"), ts.balance(royaltyTo))
	ts.Equal(eth("0.095"), ts.balance(finder))
	ts.Equal(eth("0.855"), ts.balance(owner))
	ts.Equal("0", ts.balance(escrow).String())

	nftOwner, err := ts.ledger.OwnerOf(mockCtx, nftContract, tokenId)
	ts.NoError(err)
	ts.True(nftOwner.Equals(buyer))

	_, err = ts.im.GetOffer(mockCtx, record.ToId())
	ts.Equal(domain.ErrNotFound, err)

	last := ts.bus.events[len(ts.bus.events)-1]
	executed, ok := last.(*exchange.ExecutedEvent)
	ts.Require().True(ok)
	ts.True(executed.UserA.Equals(owner))
	ts.True(executed.UserB.Equals(buyer))
}

func (ts *testsuite) TestFillOfferCommitAndCheck() {
	record := ts.createOffer("100")

	_, err := ts.im.FillOffer(mockCtx, record.ToId(), offer.FillOfferParams{Caller: owner, Amount: "99"})
	ts.Equal(domain.ErrPriceMismatch, err)

	_, err = ts.im.FillOffer(mockCtx, record.ToId(), offer.FillOfferParams{
		Caller: owner, Amount: "100", Currency: domain.Address("0x20"),
	})
	ts.Equal(domain.ErrCurrencyMismatch, err)
}

func (ts *testsuite) TestFillOfferRequiresOwner() {
	record := ts.createOffer("100")

	_, err := ts.im.FillOffer(mockCtx, record.ToId(), offer.FillOfferParams{Caller: buyer, Amount: "100"})
	ts.Equal(domain.ErrNotTokenOwnerOrOperator, err)

	// an approved operator may take the offer for the owner, but the
	// proceeds still belong to the owner
	operator := domain.Address("0x09e7")
	ts.ledger.SetApprovalForAll(nftContract, owner, operator, true)
	_, err = ts.im.FillOffer(mockCtx, record.ToId(), offer.FillOfferParams{Caller: operator, Amount: "100"})
	ts.NoError(err)
	ts.Equal(big.NewInt(100), ts.balance(owner))
	ts.Equal("0", ts.balance(operator).String())
}

func (ts *testsuite) TestFillOfferExpiry() {
	expiry := ts.now.Add(time.Hour)
	record, err := ts.im.CreateOffer(mockCtx, ts.nftId, offer.CreateOfferParams{
		Caller:        buyer,
		Amount:        "100",
		AttachedValue: "100",
		Expiry:        &expiry,
	})
	ts.Require().NoError(err)

	ts.now = ts.now.Add(2 * time.Hour)
	_, err = ts.im.FillOffer(mockCtx, record.ToId(), offer.FillOfferParams{Caller: owner, Amount: "100"})
	ts.Equal(domain.ErrExpired, err)
}

func (ts *testsuite) TestErc20Offer() {
	erc20 := domain.Address("0x20")
	ts.ledger.MintErc20(erc20, buyer, big.NewInt(1000))
	ts.ledger.Approve(erc20, buyer, escrow, big.NewInt(1000))

	record, err := ts.im.CreateOffer(mockCtx, ts.nftId, offer.CreateOfferParams{
		Caller:   buyer,
		Amount:   "400",
		Currency: erc20,
	})
	ts.Require().NoError(err)

	escrowBal, err := ts.ledger.Erc20BalanceOf(mockCtx, erc20, escrow)
	ts.NoError(err)
	ts.Equal(big.NewInt(400), escrowBal)

	ts.NoError(ts.im.CancelOffer(mockCtx, record.ToId(), buyer))

	buyerBal, err := ts.ledger.Erc20BalanceOf(mockCtx, erc20, buyer)
	ts.NoError(err)
	ts.Equal(big.NewInt(1000), buyerBal)
}
