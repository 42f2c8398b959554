package usecase

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/ask"
	"github.com/modx-xyz/exchange/domain/exchange"
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

type memAskRepo struct {
	asks map[ask.Id]*ask.Ask
}

func (r *memAskRepo) FindAll(c ctx.Ctx, opts ...ask.FindAllOptionsFunc) ([]*ask.Ask, error) {
	res := []*ask.Ask{}
	for _, a := range r.asks {
		res = append(res, a)
	}
	return res, nil
}

func (r *memAskRepo) FindOne(c ctx.Ctx, id ask.Id) (*ask.Ask, error) {
	if a, ok := r.asks[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memAskRepo) Upsert(c ctx.Ctx, a *ask.Ask) error {
	cp := *a
	r.asks[a.ToId()] = &cp
	return nil
}

func (r *memAskRepo) Remove(c ctx.Ctx, id ask.Id) error {
	if _, ok := r.asks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.asks, id)
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
	repo     *memAskRepo
	registry *fakeRegistry
	royalty  *fakeRoyalty
	bus      *recordingBus
	im       ask.UseCase
	now      time.Time
	id       ask.Id
}

func (ts *testsuite) SetupTest() {
	ts.ledger = ledgersvc.New()
	ts.repo = &memAskRepo{asks: map[ask.Id]*ask.Ask{}}
	ts.registry = &fakeRegistry{approvals: map[domain.Address]bool{}}
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
	ts.im = New(&AskUseCaseCfg{
		Asks:   ts.repo,
		Payout: engine,
		Erc20:  ts.ledger.Erc20(),
		Erc721: ts.ledger.Erc721(),
		Bus:    ts.bus,
		Module: module,
	})

	ts.now = time.Now().UTC()
	timeNow = func() time.Time { return ts.now }

	ts.id = ask.Id{ChainId: chain, ContractAddress: nftContract, TokenId: tokenId}
	ts.ledger.MintNft(nftContract, tokenId, seller)
	ts.ledger.SetApprovalForAll(nftContract, seller, escrow, true)
	ts.ledger.MintNative(buyer, eth("10"))
	ts.registry.approvals[seller] = true
	ts.registry.approvals[buyer] = true
}

func (ts *testsuite) TearDownTest() {
	timeNow = time.Now
}

func Test(t *testing.T) {
	suite.Run(t, new(testsuite))
}

func (ts *testsuite) createAsk(price string) *ask.Ask {
	record, err := ts.im.CreateAsk(mockCtx, ts.id, ask.CreateAskParams{
		Caller: seller,
		Price:  price,
	})
	ts.Require().NoError(err)
	return record
}

func (ts *testsuite) balance(account domain.Address) *big.Int {
	b, err := ts.ledger.NativeBalanceOf(mockCtx, account)
	ts.Require().NoError(err)
	return b
}

func (ts *testsuite) TestCreateAskRequiresOwnerOrOperator() {
	_, err := ts.im.CreateAsk(mockCtx, ts.id, ask.CreateAskParams{Caller: buyer, Price: "100"})
	ts.Equal(domain.ErrNotTokenOwnerOrOperator, err)

	operator := domain.Address("0x09e7")
	ts.ledger.SetApprovalForAll(nftContract, seller, operator, true)
	record, err := ts.im.CreateAsk(mockCtx, ts.id, ask.CreateAskParams{Caller: operator, Price: "100"})
	ts.NoError(err)
	ts.True(record.Seller.Equals(operator))
}

func (ts *testsuite) TestCreateAskValidations() {
	_, err := ts.im.CreateAsk(mockCtx, ts.id, ask.CreateAskParams{Caller: seller, Price: "nope"})
	ts.Equal(domain.ErrInvalidNumberFormat, err)

	_, err = ts.im.CreateAsk(mockCtx, ts.id, ask.CreateAskParams{Caller: seller, Price: "100", FindersFeeBps: 10001})
	ts.Equal(domain.ErrInvalidFeeBps, err)

	_, err = ts.im.CreateAsk(mockCtx, ts.id, ask.CreateAskParams{Caller: seller, Price: "100", ListingFeeBps: 100})
	ts.Equal(domain.ErrInvalidListingFee, err)

	_, err = ts.im.CreateAsk(mockCtx, ts.id, ask.CreateAskParams{Caller: seller, Price: "100", ListingFeeTo: finder})
	ts.Equal(domain.ErrInvalidListingFee, err)

	past := ts.now.Add(-time.Hour)
	_, err = ts.im.CreateAsk(mockCtx, ts.id, ask.CreateAskParams{Caller: seller, Price: "100", Expiry: &past})
	ts.Equal(domain.ErrInvalidExpiry, err)
}

func (ts *testsuite) TestCreateReplaceCancelsExplicitly() {
	ts.createAsk("100")
	ts.createAsk("200")

	ts.Require().Len(ts.bus.events, 3)
	ts.IsType(&ask.CreatedEvent{}, ts.bus.events[0])
	ts.IsType(&ask.CanceledEvent{}, ts.bus.events[1])
	ts.IsType(&ask.CreatedEvent{}, ts.bus.events[2])
	ts.Equal("100", ts.bus.events[1].(*ask.CanceledEvent).Ask.Price)
	ts.Equal("200", ts.bus.events[2].(*ask.CreatedEvent).Ask.Price)

	record, err := ts.im.GetAsk(mockCtx, ts.id)
	ts.NoError(err)
	ts.Equal("200", record.Price)
}

func (ts *testsuite) TestSetAskPrice() {
	ts.createAsk("100")

	_, err := ts.im.SetAskPrice(mockCtx, ts.id, buyer, "50", domain.NativeCurrency)
	ts.Equal(domain.ErrNotSeller, err)

	erc20 := domain.Address("0x20")
	record, err := ts.im.SetAskPrice(mockCtx, ts.id, seller, "500", erc20)
	ts.NoError(err)
	ts.Equal("500", record.Price)
	ts.True(record.Features.Currency().Equals(erc20))

	ts.IsType(&ask.PriceUpdatedEvent{}, ts.bus.events[len(ts.bus.events)-1])
}

func (ts *testsuite) TestCancelAsk() {
	ts.createAsk("100")

	err := ts.im.CancelAsk(mockCtx, ts.id, buyer)
	ts.Equal(domain.ErrNotTokenOwnerOrOperator, err)

	ts.NoError(ts.im.CancelAsk(mockCtx, ts.id, seller))
	_, err = ts.im.GetAsk(mockCtx, ts.id)
	ts.Equal(domain.ErrNotFound, err)

	// already gone
	ts.Equal(domain.ErrNotFound, ts.im.CancelAsk(mockCtx, ts.id, seller))
}

func (ts *testsuite) TestNewOwnerMayCancelStaleAsk() {
	ts.createAsk("100")

	newOwner := domain.Address("0x11e3")
	ts.Require().NoError(ts.ledger.Erc721TransferFrom(mockCtx, nftContract, seller, seller, newOwner, tokenId))

	ts.NoError(ts.im.CancelAsk(mockCtx, ts.id, newOwner))
}

func (ts *testsuite) TestFillAskWaterfall() {
	// royalty 5%, finders fee 10%, no protocol fee
	ts.royalty.recipients = []domain.Address{royaltyTo}
	ts.royalty.bps = 500

	_, err := ts.im.CreateAsk(mockCtx, ts.id, ask.CreateAskParams{
		Caller:        seller,
		Price:         eth("1").String(),
		FindersFeeBps: 1000,
	})
	ts.Require().NoError(err)

	record, err := ts.im.FillAsk(mockCtx, ts.id, ask.FillAskParams{
		Caller:        buyer,
		Price:         eth("1").String(),
		Finder:        finder,
		AttachedValue: eth("1").String(),
	})
	ts.Require().NoError(err)
	ts.True(record.Seller.Equals(seller))

	ts.Equal(eth("0.05"), ts.balance(royaltyTo))
	ts.Equal(eth("0.095"), ts.balance(finder))
	ts.Equal(eth("0.855"), ts.balance(seller))
	ts.Equal(eth("9"), ts.balance(buyer))
	ts.Equal("0", ts.balance(escrow).String())

	owner, err := ts.ledger.OwnerOf(mockCtx, nftContract, tokenId)
	ts.NoError(err)
	ts.True(owner.Equals(buyer))

	_, err = ts.im.GetAsk(mockCtx, ts.id)
	ts.Equal(domain.ErrNotFound, err)

	last := ts.bus.events[len(ts.bus.events)-1]
	executed, ok := last.(*exchange.ExecutedEvent)
	ts.Require().True(ok)
	ts.True(executed.UserA.Equals(seller))
	ts.True(executed.UserB.Equals(buyer))
	ts.Equal(eth("1").String(), executed.B.Amount)
}

func (ts *testsuite) TestFillAskCommitAndCheck() {
	ts.createAsk("100")

	_, err := ts.im.FillAsk(mockCtx, ts.id, ask.FillAskParams{Caller: buyer, Price: "99", AttachedValue: "100"})
	ts.Equal(domain.ErrPriceMismatch, err)

	_, err = ts.im.FillAsk(mockCtx, ts.id, ask.FillAskParams{
		Caller: buyer, Price: "100", Currency: domain.Address("0x20"), AttachedValue: "100",
	})
	ts.Equal(domain.ErrCurrencyMismatch, err)
}

func (ts *testsuite) TestFillAskChecksOwnershipLazily() {
	ts.createAsk("100")

	stranger := domain.Address("0x57a9")
	ts.Require().NoError(ts.ledger.Erc721TransferFrom(mockCtx, nftContract, seller, seller, stranger, tokenId))

	_, err := ts.im.FillAsk(mockCtx, ts.id, ask.FillAskParams{Caller: buyer, Price: "100", AttachedValue: "100"})
	ts.Equal(domain.ErrNotTokenOwnerOrOperator, err)
}

func (ts *testsuite) TestFillAskPrivateBuyer() {
	_, err := ts.im.CreateAsk(mockCtx, ts.id, ask.CreateAskParams{
		Caller: seller,
		Price:  "100",
		Buyer:  buyer,
	})
	ts.Require().NoError(err)

	other := domain.Address("0x07e3")
	ts.ledger.MintNative(other, eth("1"))
	ts.registry.approvals[other] = true

	_, err = ts.im.FillAsk(mockCtx, ts.id, ask.FillAskParams{Caller: other, Price: "100", AttachedValue: "100"})
	ts.Equal(domain.ErrNotBuyer, err)

	_, err = ts.im.FillAsk(mockCtx, ts.id, ask.FillAskParams{Caller: buyer, Price: "100", AttachedValue: "100"})
	ts.NoError(err)
}

func (ts *testsuite) TestFillAskExpiry() {
	expiry := ts.now.Add(time.Hour)
	_, err := ts.im.CreateAsk(mockCtx, ts.id, ask.CreateAskParams{
		Caller: seller,
		Price:  "100",
		Expiry: &expiry,
	})
	ts.Require().NoError(err)

	ts.now = ts.now.Add(2 * time.Hour)
	_, err = ts.im.FillAsk(mockCtx, ts.id, ask.FillAskParams{Caller: buyer, Price: "100", AttachedValue: "100"})
	ts.Equal(domain.ErrExpired, err)
}

func (ts *testsuite) TestFillAskInsufficientValue() {
	ts.createAsk(eth("1").String())

	_, err := ts.im.FillAsk(mockCtx, ts.id, ask.FillAskParams{
		Caller:        buyer,
		Price:         eth("1").String(),
		AttachedValue: eth("0.5").String(),
	})
	ts.Equal(domain.ErrInsufficientValue, err)
	ts.Equal(eth("10"), ts.balance(buyer))
}

func (ts *testsuite) TestFillAskModuleNotApproved() {
	ts.createAsk("100")
	ts.registry.approvals[buyer] = false

	_, err := ts.im.FillAsk(mockCtx, ts.id, ask.FillAskParams{Caller: buyer, Price: "100", AttachedValue: "100"})
	ts.Equal(domain.ErrModuleNotApproved, err)
}

func (ts *testsuite) TestFillAskErc20() {
	erc20 := domain.Address("0x20")
	ts.ledger.MintErc20(erc20, buyer, big.NewInt(1000))
	ts.ledger.Approve(erc20, buyer, escrow, big.NewInt(1000))

	_, err := ts.im.CreateAsk(mockCtx, ts.id, ask.CreateAskParams{
		Caller:   seller,
		Price:    "400",
		Currency: erc20,
	})
	ts.Require().NoError(err)

	_, err = ts.im.FillAsk(mockCtx, ts.id, ask.FillAskParams{Caller: buyer, Price: "400", Currency: erc20})
	ts.Require().NoError(err)

	sellerBal, err := ts.ledger.Erc20BalanceOf(mockCtx, erc20, seller)
	ts.NoError(err)
	ts.Equal(big.NewInt(400), sellerBal)

	buyerBal, err := ts.ledger.Erc20BalanceOf(mockCtx, erc20, buyer)
	ts.NoError(err)
	ts.Equal(big.NewInt(600), buyerBal)
}
