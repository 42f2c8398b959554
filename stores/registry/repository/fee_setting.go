package repository

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/database/mongoclient"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/registry"
	"github.com/modx-xyz/exchange/service/query"
)

type feeSettingImpl struct {
	q query.Mongo
}

func NewFeeSetting(q query.Mongo) registry.FeeSettingsRepo {
	return &feeSettingImpl{q}
}

func (im *feeSettingImpl) FindOne(c ctx.Ctx, id registry.FeeSettingId) (*registry.FeeSetting, error) {
	res := &registry.FeeSetting{}

	qry, err := mongoclient.MakeBsonM(&registry.FeeSettingId{Module: id.Module.ToLower()})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return nil, err
	}
	if err := im.q.FindOne(c, domain.TableFeeSettings, qry, res); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return res, nil
}

func (im *feeSettingImpl) FindAll(c ctx.Ctx) ([]*registry.FeeSetting, error) {
	res := []*registry.FeeSetting{}

	// to prevent scancol error
	qry := bson.M{"module": bson.M{"$exists": true}}

	if err := im.q.Search(c, domain.TableFeeSettings, 0, 0, "_id", qry, &res); err != nil {
		c.WithField("err", err).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}

func (im *feeSettingImpl) Upsert(c ctx.Ctx, setting *registry.FeeSetting) error {
	setting.Module = setting.Module.ToLower()
	setting.Recipient = setting.Recipient.ToLower()

	slr, err := mongoclient.MakeBsonM(&registry.FeeSettingId{Module: setting.Module})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return err
	}
	if err := im.q.Upsert(c, domain.TableFeeSettings, slr, setting); err != nil {
		c.WithField("err", err).Error("q.Upsert failed")
		return err
	}
	return nil
}

func (im *feeSettingImpl) Remove(c ctx.Ctx, id registry.FeeSettingId) error {
	slr, err := mongoclient.MakeBsonM(&registry.FeeSettingId{Module: id.Module.ToLower()})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return err
	}
	if err := im.q.Remove(c, domain.TableFeeSettings, slr); err == query.ErrNotFound {
		return domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.Remove failed")
		return err
	}
	return nil
}
