package royalty

import (
	"math/big"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
)

// Oracle resolves creator-royalty recipients and amounts for an asset at a
// given sale amount. Implementations may be slow, revert, or return
// nonsense; callers must bound the call and treat any failure as "no
// royalty".
type Oracle interface {
	GetRoyalty(c ctx.Ctx, chainId domain.ChainId, tokenContract domain.Address, tokenId domain.TokenId, amount *big.Int) ([]domain.Address, []*big.Int, error)
}

// Share is one royalty recipient's cut in basis points of the sale amount.
type Share struct {
	Recipient domain.Address `json:"recipient" bson:"recipient"`
	Bps       domain.Bps     `json:"bps" bson:"bps"`
}

// Schedule is the registered royalty configuration for a collection.
// Token-level overrides take precedence over the collection-wide entry.
type Schedule struct {
	ChainId         domain.ChainId `json:"chainId" bson:"chainId"`
	ContractAddress domain.Address `json:"contractAddress" bson:"contractAddress"`
	TokenId         domain.TokenId `json:"tokenId,omitempty" bson:"tokenId,omitempty"`
	Shares          []Share        `json:"shares" bson:"shares"`
}

func (s *Schedule) ToId() ScheduleId {
	return ScheduleId{
		ChainId:         s.ChainId,
		ContractAddress: s.ContractAddress,
		TokenId:         s.TokenId,
	}
}

// TotalBps is the summed royalty cut, used to reject insolvent schedules.
func (s *Schedule) TotalBps() domain.Bps {
	total := domain.Bps(0)
	for _, share := range s.Shares {
		total += share.Bps
	}
	return total
}

type ScheduleId struct {
	ChainId         domain.ChainId `json:"chainId" bson:"chainId"`
	ContractAddress domain.Address `json:"contractAddress" bson:"contractAddress"`
	TokenId         domain.TokenId `json:"tokenId,omitempty" bson:"tokenId,omitempty"`
}

type ScheduleRepo interface {
	FindOne(c ctx.Ctx, id ScheduleId) (*Schedule, error)
	Upsert(c ctx.Ctx, schedule *Schedule) error
	Remove(c ctx.Ctx, id ScheduleId) error
}

// UseCase manages registered schedules and doubles as the Oracle the
// settlement path consults.
type UseCase interface {
	Oracle
	GetSchedule(c ctx.Ctx, id ScheduleId) (*Schedule, error)
	SetSchedule(c ctx.Ctx, schedule *Schedule) error
	RemoveSchedule(c ctx.Ctx, id ScheduleId) error
}
