// Package royaltyengine resolves creator royalties for a sale. It probes
// the upstream oracle once per token with a fixed reference amount, caches
// the shape of the answer, and scales it to each sale amount. The probe
// runs under a call budget so a stalling oracle degrades to "no royalties"
// instead of blocking settlement.
package royaltyengine

import (
	"fmt"
	"math/big"
	"time"

	"github.com/modx-xyz/exchange/base/call"
	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/keys"
	"github.com/modx-xyz/exchange/domain/royalty"
	"github.com/modx-xyz/exchange/service/cache"
)

// probeAmount gives enough precision to reconstruct sub-bps royalty
// schedules from the cached probe.
var probeAmount = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

type royaltyShape struct {
	Recipients []domain.Address `json:"recipients"`
	Shares     []string         `json:"shares"`
}

type Cfg struct {
	Upstream royalty.Oracle
	Cache    cache.Service
	Budget   time.Duration
}

type impl struct {
	upstream royalty.Oracle
	cache    cache.Service
	budget   time.Duration
}

func New(cfg *Cfg) royalty.Oracle {
	return &impl{
		upstream: cfg.Upstream,
		cache:    cfg.Cache,
		budget:   cfg.Budget,
	}
}

func (im *impl) GetRoyalty(c ctx.Ctx, chainId domain.ChainId, tokenContract domain.Address, tokenId domain.TokenId, amount *big.Int) ([]domain.Address, []*big.Int, error) {
	shape, err := im.shape(c, chainId, tokenContract, tokenId)
	if err != nil {
		return nil, nil, err
	}

	recipients := make([]domain.Address, 0, len(shape.Recipients))
	amounts := make([]*big.Int, 0, len(shape.Recipients))
	for i, recipient := range shape.Recipients {
		share := domain.MustBigInt(shape.Shares[i])
		scaled := new(big.Int).Mul(share, amount)
		scaled.Div(scaled, probeAmount)
		if scaled.Sign() == 0 {
			continue
		}
		recipients = append(recipients, recipient)
		amounts = append(amounts, scaled)
	}
	return recipients, amounts, nil
}

func (im *impl) shape(c ctx.Ctx, chainId domain.ChainId, tokenContract domain.Address, tokenId domain.TokenId) (*royaltyShape, error) {
	key := keys.RedisKey(keys.PfxRoyalty, fmt.Sprint(chainId), tokenContract.ToLowerStr(), tokenId.String())

	shape := &royaltyShape{}
	err := im.cache.GetByFunc(c, key, shape, func() (interface{}, error) {
		return im.probe(c, chainId, tokenContract, tokenId)
	})
	if err != nil {
		c.WithField("err", err).Warn("royalty lookup failed, settling without royalties")
		return &royaltyShape{}, nil
	}
	return shape, nil
}

func (im *impl) probe(c ctx.Ctx, chainId domain.ChainId, tokenContract domain.Address, tokenId domain.TokenId) (*royaltyShape, error) {
	var recipients []domain.Address
	var amounts []*big.Int

	err := call.Bounded(c, im.budget, func(c ctx.Ctx) error {
		var err error
		recipients, amounts, err = im.upstream.GetRoyalty(c, chainId, tokenContract, tokenId, probeAmount)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(recipients) != len(amounts) {
		return nil, fmt.Errorf("royalty oracle returned %d recipients and %d amounts", len(recipients), len(amounts))
	}

	shape := &royaltyShape{Recipients: recipients}
	for _, a := range amounts {
		shape.Shares = append(shape.Shares, a.String())
	}
	return shape, nil
}
