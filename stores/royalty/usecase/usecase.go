package usecase

import (
	"math/big"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/royalty"
)

type impl struct {
	schedules royalty.ScheduleRepo
}

func New(schedules royalty.ScheduleRepo) royalty.UseCase {
	return &impl{schedules}
}

// GetRoyalty resolves the schedule for a token, preferring a token-level
// override over the collection-wide entry. No schedule means no royalty.
func (im *impl) GetRoyalty(c ctx.Ctx, chainId domain.ChainId, tokenContract domain.Address, tokenId domain.TokenId, amount *big.Int) ([]domain.Address, []*big.Int, error) {
	schedule, err := im.schedules.FindOne(c, royalty.ScheduleId{
		ChainId:         chainId,
		ContractAddress: tokenContract,
		TokenId:         tokenId,
	})
	if err == domain.ErrNotFound {
		schedule, err = im.schedules.FindOne(c, royalty.ScheduleId{
			ChainId:         chainId,
			ContractAddress: tokenContract,
		})
	}
	if err == domain.ErrNotFound {
		return nil, nil, nil
	} else if err != nil {
		return nil, nil, err
	}

	recipients := make([]domain.Address, 0, len(schedule.Shares))
	amounts := make([]*big.Int, 0, len(schedule.Shares))
	for _, share := range schedule.Shares {
		recipients = append(recipients, share.Recipient)
		amounts = append(amounts, share.Bps.Of(amount))
	}
	return recipients, amounts, nil
}

func (im *impl) GetSchedule(c ctx.Ctx, id royalty.ScheduleId) (*royalty.Schedule, error) {
	id.ContractAddress = id.ContractAddress.ToLower()
	return im.schedules.FindOne(c, id)
}

func (im *impl) SetSchedule(c ctx.Ctx, schedule *royalty.Schedule) error {
	if !schedule.TotalBps().Valid() {
		return domain.ErrInvalidFeeBps
	}
	for _, share := range schedule.Shares {
		if !share.Bps.Valid() {
			return domain.ErrInvalidFeeBps
		}
		if share.Recipient.IsEmpty() {
			return domain.ErrInvalidFundsRecipient
		}
	}
	return im.schedules.Upsert(c, schedule)
}

func (im *impl) RemoveSchedule(c ctx.Ctx, id royalty.ScheduleId) error {
	id.ContractAddress = id.ContractAddress.ToLower()
	return im.schedules.Remove(c, id)
}
