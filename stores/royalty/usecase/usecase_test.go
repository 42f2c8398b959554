package usecase

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/royalty"
)

var mockCtx = ctx.Background()

var (
	contract = domain.Address("0x10f7")
	creator  = domain.Address("0xc0ffee")
	coArtist = domain.Address("0xa271e7")
)

type memScheduleRepo struct {
	schedules map[royalty.ScheduleId]*royalty.Schedule
}

func (r *memScheduleRepo) FindOne(c ctx.Ctx, id royalty.ScheduleId) (*royalty.Schedule, error) {
	if s, ok := r.schedules[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memScheduleRepo) Upsert(c ctx.Ctx, s *royalty.Schedule) error {
	cp := *s
	r.schedules[s.ToId()] = &cp
	return nil
}

func (r *memScheduleRepo) Remove(c ctx.Ctx, id royalty.ScheduleId) error {
	if _, ok := r.schedules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.schedules, id)
	return nil
}

type testsuite struct {
	suite.Suite
	repo *memScheduleRepo
	im   royalty.UseCase
}

func (ts *testsuite) SetupTest() {
	ts.repo = &memScheduleRepo{schedules: map[royalty.ScheduleId]*royalty.Schedule{}}
	ts.im = New(ts.repo)
}

func Test(t *testing.T) {
	suite.Run(t, new(testsuite))
}

func (ts *testsuite) TestCollectionSchedule() {
	ts.Require().NoError(ts.im.SetSchedule(mockCtx, &royalty.Schedule{
		ChainId:         1,
		ContractAddress: contract,
		Shares: []royalty.Share{
			{Recipient: creator, Bps: 400},
			{Recipient: coArtist, Bps: 100},
		},
	}))

	recipients, amounts, err := ts.im.GetRoyalty(mockCtx, 1, contract, "42", big.NewInt(10000))
	ts.Require().NoError(err)
	ts.Require().Len(recipients, 2)
	ts.True(recipients[0].Equals(creator))
	ts.Equal(big.NewInt(400), amounts[0])
	ts.Equal(big.NewInt(100), amounts[1])
}

func (ts *testsuite) TestTokenOverrideWins() {
	ts.Require().NoError(ts.im.SetSchedule(mockCtx, &royalty.Schedule{
		ChainId:         1,
		ContractAddress: contract,
		Shares:          []royalty.Share{{Recipient: creator, Bps: 500}},
	}))
	ts.Require().NoError(ts.im.SetSchedule(mockCtx, &royalty.Schedule{
		ChainId:         1,
		ContractAddress: contract,
		TokenId:         "42",
		Shares:          []royalty.Share{{Recipient: coArtist, Bps: 1000}},
	}))

	recipients, amounts, err := ts.im.GetRoyalty(mockCtx, 1, contract, "42", big.NewInt(10000))
	ts.Require().NoError(err)
	ts.Require().Len(recipients, 1)
	ts.True(recipients[0].Equals(coArtist))
	ts.Equal(big.NewInt(1000), amounts[0])

	// other tokens still follow the collection entry
	recipients, _, err = ts.im.GetRoyalty(mockCtx, 1, contract, "7", big.NewInt(10000))
	ts.Require().NoError(err)
	ts.Require().Len(recipients, 1)
	ts.True(recipients[0].Equals(creator))
}

func (ts *testsuite) TestNoScheduleMeansNoRoyalty() {
	recipients, amounts, err := ts.im.GetRoyalty(mockCtx, 1, contract, "42", big.NewInt(10000))
	ts.NoError(err)
	ts.Empty(recipients)
	ts.Empty(amounts)
}

func (ts *testsuite) TestSetScheduleValidation() {
	ts.Equal(domain.ErrInvalidFeeBps, ts.im.SetSchedule(mockCtx, &royalty.Schedule{
		ChainId:         1,
		ContractAddress: contract,
		Shares: []royalty.Share{
			{Recipient: creator, Bps: 6000},
			{Recipient: coArtist, Bps: 6000},
		},
	}))
	ts.Equal(domain.ErrInvalidFundsRecipient, ts.im.SetSchedule(mockCtx, &royalty.Schedule{
		ChainId:         1,
		ContractAddress: contract,
		Shares:          []royalty.Share{{Recipient: domain.EmptyAddress, Bps: 500}},
	}))
	ts.Empty(ts.repo.schedules)
}

func (ts *testsuite) TestRemoveSchedule() {
	ts.Require().NoError(ts.im.SetSchedule(mockCtx, &royalty.Schedule{
		ChainId:         1,
		ContractAddress: contract,
		Shares:          []royalty.Share{{Recipient: creator, Bps: 500}},
	}))
	ts.NoError(ts.im.RemoveSchedule(mockCtx, royalty.ScheduleId{ChainId: 1, ContractAddress: contract}))

	recipients, _, err := ts.im.GetRoyalty(mockCtx, 1, contract, "42", big.NewInt(10000))
	ts.NoError(err)
	ts.Empty(recipients)
}
