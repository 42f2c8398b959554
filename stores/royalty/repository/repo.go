package repository

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/database/mongoclient"
	"github.com/modx-xyz/exchange/base/log"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/royalty"
	"github.com/modx-xyz/exchange/service/query"
)

type impl struct {
	q query.Mongo
}

func New(q query.Mongo) royalty.ScheduleRepo {
	return &impl{q}
}

func makeIdSelector(c ctx.Ctx, id royalty.ScheduleId) (interface{}, error) {
	slr, err := mongoclient.MakeBsonM(&royalty.ScheduleId{
		ChainId:         id.ChainId,
		ContractAddress: id.ContractAddress.ToLower(),
		TokenId:         id.TokenId,
	})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return nil, err
	}
	// a collection-wide id must not match token-level overrides
	if id.TokenId == "" {
		slr["tokenId"] = bson.M{"$exists": false}
	}
	return slr, nil
}

func (im *impl) FindOne(c ctx.Ctx, id royalty.ScheduleId) (*royalty.Schedule, error) {
	slr, err := makeIdSelector(c, id)
	if err != nil {
		return nil, err
	}

	res := &royalty.Schedule{}
	if err := im.q.FindOne(c, domain.TableRoyaltySchedules, slr, res); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) Upsert(c ctx.Ctx, value *royalty.Schedule) error {
	value.ContractAddress = value.ContractAddress.ToLower()
	for i := range value.Shares {
		value.Shares[i].Recipient = value.Shares[i].Recipient.ToLower()
	}

	slr, err := makeIdSelector(c, value.ToId())
	if err != nil {
		return err
	}
	if err := im.q.Upsert(c, domain.TableRoyaltySchedules, slr, value); err != nil {
		c.WithFields(log.Fields{"err": err, "schedule": *value}).Error("q.Upsert failed")
		return err
	}
	return nil
}

func (im *impl) Remove(c ctx.Ctx, id royalty.ScheduleId) error {
	slr, err := makeIdSelector(c, id)
	if err != nil {
		return err
	}
	if err := im.q.Remove(c, domain.TableRoyaltySchedules, slr); err == query.ErrNotFound {
		return domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.Remove failed")
		return err
	}
	return nil
}
