package ledger

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
)

var (
	mockCtx = ctx.Background()

	alice = domain.Address("0xAA01")
	bob   = domain.Address("0xBB02")
	weth  = domain.Address("0x1111")
	usdc  = domain.Address("0x2222")
	punks = domain.Address("0x3333")
)

type testsuite struct {
	suite.Suite
	im *InMemory
}

func (ts *testsuite) SetupTest() {
	ts.im = New()
}

func Test(t *testing.T) {
	suite.Run(t, new(testsuite))
}

func (ts *testsuite) TestNativeTransfer() {
	ts.im.MintNative(alice, big.NewInt(100))

	ts.NoError(ts.im.Native().Transfer(mockCtx, alice, bob, big.NewInt(40)))

	b, err := ts.im.Native().BalanceOf(mockCtx, alice)
	ts.NoError(err)
	ts.Equal(big.NewInt(60), b)
	b, err = ts.im.Native().BalanceOf(mockCtx, bob)
	ts.NoError(err)
	ts.Equal(big.NewInt(40), b)

	ts.Equal(ErrInsufficientFunds, ts.im.Native().Transfer(mockCtx, alice, bob, big.NewInt(1000)))
}

func (ts *testsuite) TestNativeTransferNeverCommitsAfterCancel() {
	ts.im.MintNative(alice, big.NewInt(100))

	c, cancel := ctx.WithCancel(mockCtx)
	cancel()

	ts.Error(ts.im.Native().Transfer(c, alice, bob, big.NewInt(40)))

	b, err := ts.im.Native().BalanceOf(mockCtx, alice)
	ts.NoError(err)
	ts.Equal(big.NewInt(100), b)
	b, err = ts.im.Native().BalanceOf(mockCtx, bob)
	ts.NoError(err)
	ts.Equal(big.NewInt(0), b)
}

func (ts *testsuite) TestNativeRejected() {
	ts.im.MintNative(alice, big.NewInt(100))
	ts.im.RejectNative(bob, true)

	ts.Equal(ErrRejected, ts.im.Native().Transfer(mockCtx, alice, bob, big.NewInt(1)))

	// sender keeps the funds
	b, err := ts.im.Native().BalanceOf(mockCtx, alice)
	ts.NoError(err)
	ts.Equal(big.NewInt(100), b)
}

func (ts *testsuite) TestNativeDelayHonorsContext() {
	ts.im.MintNative(alice, big.NewInt(100))
	ts.im.DelayNative(bob, time.Minute)

	c, cancel := ctx.WithTimeout(mockCtx, 10*time.Millisecond)
	defer cancel()
	ts.Error(ts.im.Native().Transfer(c, alice, bob, big.NewInt(1)))
}

func (ts *testsuite) TestErc20TransferFrom() {
	operator := domain.Address("0xCC03")
	ts.im.MintErc20(usdc, alice, big.NewInt(100))

	ts.Equal(ErrAllowance, ts.im.Erc20().TransferFrom(mockCtx, usdc, operator, alice, bob, big.NewInt(10)))

	ts.im.Approve(usdc, alice, operator, big.NewInt(15))
	ts.NoError(ts.im.Erc20().TransferFrom(mockCtx, usdc, operator, alice, bob, big.NewInt(10)))
	ts.Equal(ErrAllowance, ts.im.Erc20().TransferFrom(mockCtx, usdc, operator, alice, bob, big.NewInt(10)))

	b, err := ts.im.Erc20().BalanceOf(mockCtx, usdc, bob)
	ts.NoError(err)
	ts.Equal(big.NewInt(10), b)
}

func (ts *testsuite) TestErc721Transfer() {
	operator := domain.Address("0xCC03")
	tokenId := domain.TokenId("7")
	ts.im.MintNft(punks, tokenId, alice)

	owner, err := ts.im.Erc721().OwnerOf(mockCtx, punks, tokenId)
	ts.NoError(err)
	ts.True(owner.Equals(alice))

	ts.Equal(ErrNotApproved, ts.im.Erc721().TransferFrom(mockCtx, punks, operator, alice, bob, tokenId))

	ts.im.SetApprovalForAll(punks, alice, operator, true)
	ts.NoError(ts.im.Erc721().TransferFrom(mockCtx, punks, operator, alice, bob, tokenId))

	owner, err = ts.im.Erc721().OwnerOf(mockCtx, punks, tokenId)
	ts.NoError(err)
	ts.True(owner.Equals(bob))

	// owner moves their own token without any approval
	ts.NoError(ts.im.Erc721().TransferFrom(mockCtx, punks, bob, bob, alice, tokenId))
}

func (ts *testsuite) TestWrappedDeposit() {
	chainId := domain.ChainId(1)
	ts.im.SetWrappedNative(chainId, weth)
	ts.im.MintNative(alice, big.NewInt(100))

	ts.NoError(ts.im.WrappedNative().Deposit(mockCtx, chainId, alice, big.NewInt(30)))

	b, err := ts.im.Native().BalanceOf(mockCtx, alice)
	ts.NoError(err)
	ts.Equal(big.NewInt(70), b)
	b, err = ts.im.WrappedNative().BalanceOf(mockCtx, chainId, alice)
	ts.NoError(err)
	ts.Equal(big.NewInt(30), b)

	ts.NoError(ts.im.WrappedNative().Transfer(mockCtx, chainId, alice, bob, big.NewInt(30)))
	b, err = ts.im.Erc20().BalanceOf(mockCtx, weth, bob)
	ts.NoError(err)
	ts.Equal(big.NewInt(30), b)
}
