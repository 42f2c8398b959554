package royaltyengine

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/service/cache"
	"github.com/modx-xyz/exchange/service/cache/provider/primitive"
)

var (
	mockCtx = ctx.Background()

	creator  = domain.Address("0xc0ffee")
	contract = domain.Address("0xabc")
	tokenId  = domain.TokenId("1")
)

type fakeOracle struct {
	calls      int
	recipients []domain.Address
	bps        []int64
	stall      time.Duration
}

func (o *fakeOracle) GetRoyalty(c ctx.Ctx, chainId domain.ChainId, tokenContract domain.Address, tokenId domain.TokenId, amount *big.Int) ([]domain.Address, []*big.Int, error) {
	o.calls++
	if o.stall > 0 {
		select {
		case <-time.After(o.stall):
		case <-c.Done():
			return nil, nil, c.Err()
		}
	}
	amounts := make([]*big.Int, len(o.recipients))
	for i := range o.recipients {
		amounts[i] = domain.Bps(o.bps[i]).Of(amount)
	}
	return o.recipients, amounts, nil
}

type testsuite struct {
	suite.Suite
	oracle *fakeOracle
	engine *impl
}

func (ts *testsuite) SetupTest() {
	ts.oracle = &fakeOracle{recipients: []domain.Address{creator}, bps: []int64{500}}
	ts.engine = New(&Cfg{
		Upstream: ts.oracle,
		Cache: cache.New(cache.ServiceConfig{
			Ttl:   time.Minute,
			Pfx:   "testing",
			Cache: primitive.NewPrimitive("royalty", 64),
		}),
		Budget: 100 * time.Millisecond,
	}).(*impl)
}

func Test(t *testing.T) {
	suite.Run(t, new(testsuite))
}

func (ts *testsuite) TestScalesToSaleAmount() {
	sale := big.NewInt(1000000)
	recipients, amounts, err := ts.engine.GetRoyalty(mockCtx, 1, contract, tokenId, sale)
	ts.NoError(err)
	ts.Len(recipients, 1)
	ts.True(recipients[0].Equals(creator))
	ts.Equal(big.NewInt(50000), amounts[0])
}

func (ts *testsuite) TestProbeIsCached() {
	sale := big.NewInt(100)
	_, _, err := ts.engine.GetRoyalty(mockCtx, 1, contract, tokenId, sale)
	ts.NoError(err)
	_, _, err = ts.engine.GetRoyalty(mockCtx, 1, contract, tokenId, big.NewInt(200))
	ts.NoError(err)
	ts.Equal(1, ts.oracle.calls)
}

func (ts *testsuite) TestStallingOracleYieldsNoRoyalties() {
	ts.oracle.stall = time.Second

	recipients, amounts, err := ts.engine.GetRoyalty(mockCtx, 1, contract, tokenId, big.NewInt(1000))
	ts.NoError(err)
	ts.Empty(recipients)
	ts.Empty(amounts)
}

func (ts *testsuite) TestDustShareDropped() {
	// 5% of 10 floors to 0, so the share is dropped entirely
	recipients, amounts, err := ts.engine.GetRoyalty(mockCtx, 1, contract, tokenId, big.NewInt(10))
	ts.NoError(err)
	ts.Empty(recipients)
	ts.Empty(amounts)
}
