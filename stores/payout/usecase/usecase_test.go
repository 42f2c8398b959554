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
	"github.com/modx-xyz/exchange/domain/payout"
	"github.com/modx-xyz/exchange/domain/registry"
	"github.com/modx-xyz/exchange/service/ledger"
)

var (
	mockCtx = ctx.Background()

	chainId = domain.ChainId(1)
	escrow  = domain.Address("0xe5c404")
	module  = domain.Address("0x30d01e")
	seller  = domain.Address("0x5e11e4")
	buyer   = domain.Address("0xb04e4")
	finder  = domain.Address("0xf19de4")
	creator = domain.Address("0xc4ea104")
	weth    = domain.Address("0x3e7441")
	punks   = domain.Address("0x9a11e4")

	tokenId = domain.TokenId("42")
)

func eth(s string) *big.Int {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d.Mul(decimal.New(1, 18)).BigInt()
}

type fakeRegistry struct {
	approvals map[string]bool
	feeBps    domain.Bps
	feeTo     domain.Address
}

func (r *fakeRegistry) IsModuleApproved(c ctx.Ctx, user, mod domain.Address) (bool, error) {
	return r.approvals[user.ToLowerStr()+":"+mod.ToLowerStr()], nil
}

func (r *fakeRegistry) SetModuleApproval(c ctx.Ctx, user, mod domain.Address, approved bool) error {
	r.approvals[user.ToLowerStr()+":"+mod.ToLowerStr()] = approved
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
	amounts    func(sale *big.Int) []*big.Int
}

func (r *fakeRoyalty) GetRoyalty(c ctx.Ctx, chainId domain.ChainId, tokenContract domain.Address, tokenId domain.TokenId, amount *big.Int) ([]domain.Address, []*big.Int, error) {
	if len(r.recipients) == 0 {
		return nil, nil, nil
	}
	return r.recipients, r.amounts(amount), nil
}

type testsuite struct {
	suite.Suite
	ledger   *ledger.InMemory
	registry *fakeRegistry
	royalty  *fakeRoyalty
	engine   payout.Engine
}

func (ts *testsuite) SetupTest() {
	ts.ledger = ledger.New()
	ts.ledger.SetWrappedNative(chainId, weth)
	ts.registry = &fakeRegistry{approvals: map[string]bool{}, feeTo: domain.Address("0xfee")}
	ts.royalty = &fakeRoyalty{}
	ts.engine = New(&Cfg{
		Native:   ts.ledger.Native(),
		Erc20:    ts.ledger.Erc20(),
		Erc721:   ts.ledger.Erc721(),
		Wrapped:  ts.ledger.WrappedNative(),
		Royalty:  ts.royalty,
		Registry: ts.registry,
		Escrow:   escrow,
		Budget:   20 * time.Millisecond,
	})

	_ = ts.registry.SetModuleApproval(mockCtx, buyer, module, true)
	_ = ts.registry.SetModuleApproval(mockCtx, seller, module, true)
}

func Test(t *testing.T) {
	suite.Run(t, new(testsuite))
}

func (ts *testsuite) nativeBalance(account domain.Address) *big.Int {
	b, err := ts.ledger.Native().BalanceOf(mockCtx, account)
	ts.Require().NoError(err)
	return b
}

func (ts *testsuite) TestIncomingNativeRequiresAttachedValue() {
	ts.ledger.MintNative(buyer, eth("2"))

	err := ts.engine.HandleIncoming(mockCtx, payout.IncomingParams{
		Module: module, ChainId: chainId, From: buyer,
		Currency: domain.NativeCurrency, Amount: eth("1"), AttachedValue: eth("0.5"),
	})
	ts.Equal(domain.ErrInsufficientValue, err)

	err = ts.engine.HandleIncoming(mockCtx, payout.IncomingParams{
		Module: module, ChainId: chainId, From: buyer,
		Currency: domain.NativeCurrency, Amount: eth("1"), AttachedValue: eth("1"),
	})
	ts.NoError(err)
	ts.Equal(eth("1"), ts.nativeBalance(escrow))
}

func (ts *testsuite) TestIncomingRequiresModuleApproval() {
	stranger := domain.Address("0x571a8e4")
	ts.ledger.MintNative(stranger, eth("1"))

	err := ts.engine.HandleIncoming(mockCtx, payout.IncomingParams{
		Module: module, ChainId: chainId, From: stranger,
		Currency: domain.NativeCurrency, Amount: eth("1"), AttachedValue: eth("1"),
	})
	ts.Equal(domain.ErrModuleNotApproved, err)
}

func (ts *testsuite) TestIncomingErc20VerifiesDelta() {
	usdc := domain.Address("0x05dc")
	ts.ledger.MintErc20(usdc, buyer, big.NewInt(1000))
	ts.ledger.Approve(usdc, buyer, escrow, big.NewInt(1000))

	err := ts.engine.HandleIncoming(mockCtx, payout.IncomingParams{
		Module: module, ChainId: chainId, From: buyer,
		Currency: usdc, Amount: big.NewInt(400),
	})
	ts.NoError(err)

	b, err := ts.ledger.Erc20().BalanceOf(mockCtx, usdc, escrow)
	ts.NoError(err)
	ts.Equal(big.NewInt(400), b)
}

func (ts *testsuite) TestOutgoingZeroIsNoop() {
	ts.NoError(ts.engine.HandleOutgoing(mockCtx, chainId, seller, domain.NativeCurrency, big.NewInt(0)))
	ts.NoError(ts.engine.HandleOutgoing(mockCtx, chainId, seller, domain.NativeCurrency, nil))
}

func (ts *testsuite) TestOutgoingFallsBackToWrapped() {
	ts.ledger.MintNative(escrow, eth("1"))
	ts.ledger.RejectNative(seller, true)

	ts.NoError(ts.engine.HandleOutgoing(mockCtx, chainId, seller, domain.NativeCurrency, eth("1")))

	b, err := ts.ledger.WrappedNative().BalanceOf(mockCtx, chainId, seller)
	ts.NoError(err)
	ts.Equal(eth("1"), b)
	ts.Equal(big.NewInt(0).String(), ts.nativeBalance(seller).String())
}

func (ts *testsuite) TestOutgoingSlowReceiverFallsBackToWrapped() {
	ts.ledger.MintNative(escrow, eth("1"))
	ts.ledger.DelayNative(seller, time.Second)

	ts.NoError(ts.engine.HandleOutgoing(mockCtx, chainId, seller, domain.NativeCurrency, eth("1")))

	b, err := ts.ledger.WrappedNative().BalanceOf(mockCtx, chainId, seller)
	ts.NoError(err)
	ts.Equal(eth("1"), b)
}

func (ts *testsuite) TestOutgoingSlowReceiverIsPaidExactlyOnce() {
	// the delivery outlives the budget, the fallback pays in wrapped, and
	// the original delivery must not land afterwards as a second payment
	ts.ledger.MintNative(escrow, eth("2"))
	ts.ledger.DelayNative(seller, 50*time.Millisecond)

	ts.NoError(ts.engine.HandleOutgoing(mockCtx, chainId, seller, domain.NativeCurrency, eth("1")))
	time.Sleep(100 * time.Millisecond)

	b, err := ts.ledger.WrappedNative().BalanceOf(mockCtx, chainId, seller)
	ts.NoError(err)
	ts.Equal(eth("1"), b)
	ts.Equal(big.NewInt(0).String(), ts.nativeBalance(seller).String())
	ts.Equal(eth("1"), ts.nativeBalance(escrow))
}

// A 1 ETH sale with a 5% royalty and 10% finders fee pays 0.05 to the
// creator, 0.095 to the finder and 0.855 to the seller.
func (ts *testsuite) TestDistributeRoyaltyAndFindersFee() {
	ts.ledger.MintNative(escrow, eth("1"))
	ts.royalty.recipients = []domain.Address{creator}
	ts.royalty.amounts = func(sale *big.Int) []*big.Int {
		return []*big.Int{domain.Bps(500).Of(sale)}
	}

	dist, err := ts.engine.DistributeSale(mockCtx, payout.SaleParams{
		Module: module, ChainId: chainId,
		TokenContract: punks, TokenId: tokenId,
		Currency: domain.NativeCurrency, Amount: eth("1"),
		FundsRecipient: seller,
		FindersFeeBps:  1000, Finder: finder,
	})
	ts.NoError(err)

	ts.Equal(eth("0.05"), ts.nativeBalance(creator))
	ts.Equal(eth("0.095"), ts.nativeBalance(finder))
	ts.Equal(eth("0.855"), ts.nativeBalance(seller))
	ts.Equal(big.NewInt(0).String(), ts.nativeBalance(escrow).String())

	ts.Len(dist.Royalties, 1)
	ts.NotNil(dist.FindersFee)
	ts.Nil(dist.ProtocolFee)
	ts.Equal(eth("0.855"), dist.Seller.Amount)
}

// A 1 ETH auction with a 5% royalty and a 1 bps protocol fee pays
// 0.05 royalty, 0.000095 protocol fee and 0.949905 to the seller.
func (ts *testsuite) TestDistributeProtocolFeeOnRemainder() {
	ts.ledger.MintNative(escrow, eth("1"))
	ts.royalty.recipients = []domain.Address{creator}
	ts.royalty.amounts = func(sale *big.Int) []*big.Int {
		return []*big.Int{domain.Bps(500).Of(sale)}
	}
	ts.registry.feeBps = 1

	dist, err := ts.engine.DistributeSale(mockCtx, payout.SaleParams{
		Module: module, ChainId: chainId,
		TokenContract: punks, TokenId: tokenId,
		Currency: domain.NativeCurrency, Amount: eth("1"),
		FundsRecipient: seller,
	})
	ts.NoError(err)

	ts.Equal(eth("0.05"), ts.nativeBalance(creator))
	ts.Equal(eth("0.000095"), ts.nativeBalance(ts.registry.feeTo))
	ts.Equal(eth("0.949905"), ts.nativeBalance(seller))
	ts.NotNil(dist.ProtocolFee)
}

func (ts *testsuite) TestDistributeInsolventRoyaltySkipsRoyalties() {
	ts.ledger.MintNative(escrow, eth("1"))
	ts.royalty.recipients = []domain.Address{creator}
	ts.royalty.amounts = func(sale *big.Int) []*big.Int {
		return []*big.Int{new(big.Int).Add(sale, big.NewInt(1))}
	}

	dist, err := ts.engine.DistributeSale(mockCtx, payout.SaleParams{
		Module: module, ChainId: chainId,
		TokenContract: punks, TokenId: tokenId,
		Currency: domain.NativeCurrency, Amount: eth("1"),
		FundsRecipient: seller,
	})
	ts.NoError(err)
	ts.Empty(dist.Royalties)
	ts.Equal(eth("1"), ts.nativeBalance(seller))
	ts.Equal(big.NewInt(0).String(), ts.nativeBalance(creator).String())
}

func (ts *testsuite) TestDistributeListingFeeBeforeFindersFee() {
	listingTo := domain.Address("0x115713")
	ts.ledger.MintNative(escrow, big.NewInt(10000))

	dist, err := ts.engine.DistributeSale(mockCtx, payout.SaleParams{
		Module: module, ChainId: chainId,
		TokenContract: punks, TokenId: tokenId,
		Currency: domain.NativeCurrency, Amount: big.NewInt(10000),
		FundsRecipient: seller,
		ListingFee:     &exchange.ListingFee{Bps: 1000, Recipient: listingTo},
		FindersFeeBps:  1000, Finder: finder,
	})
	ts.NoError(err)

	// listing fee on 10000, finders fee on the remaining 9000
	ts.Equal(big.NewInt(1000), dist.ListingFee.Amount)
	ts.Equal(big.NewInt(900), dist.FindersFee.Amount)
	ts.Equal(big.NewInt(8100), dist.Seller.Amount)
}

func (ts *testsuite) TestTransferNft() {
	ts.ledger.MintNft(punks, tokenId, seller)
	ts.ledger.SetApprovalForAll(punks, seller, escrow, true)

	err := ts.engine.TransferNft(mockCtx, module, chainId, punks, seller, buyer, tokenId)
	ts.NoError(err)

	owner, err := ts.ledger.Erc721().OwnerOf(mockCtx, punks, tokenId)
	ts.NoError(err)
	ts.True(owner.Equals(buyer))
}

func (ts *testsuite) TestTransferNftRequiresModuleApproval() {
	stranger := domain.Address("0x571a8e4")
	ts.ledger.MintNft(punks, tokenId, stranger)
	ts.ledger.SetApprovalForAll(punks, stranger, escrow, true)

	err := ts.engine.TransferNft(mockCtx, module, chainId, punks, stranger, buyer, tokenId)
	ts.Equal(domain.ErrModuleNotApproved, err)
}
