package repository

import (
	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/database/mongoclient"
	"github.com/modx-xyz/exchange/base/log"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/ask"
	"github.com/modx-xyz/exchange/service/query"
)

type impl struct {
	q query.Mongo
}

func New(q query.Mongo) ask.Repo {
	return &impl{q}
}

func (im *impl) FindAll(c ctx.Ctx, optFns ...ask.FindAllOptionsFunc) ([]*ask.Ask, error) {
	opts, err := ask.GetFindAllOptions(optFns...)
	if err != nil {
		c.WithField("err", err).Error("ask.GetFindAllOptions failed")
		return nil, err
	}

	var (
		offset int    = 0
		limit  int    = 0
		sort   string = "_id"
	)
	if opts.Offset != nil {
		offset = int(*opts.Offset)
	}
	if opts.Limit != nil {
		limit = int(*opts.Limit)
	}
	if opts.Sort != nil {
		sort = *opts.Sort
	}

	qry, err := mongoclient.MakeBsonM(opts)
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return nil, err
	}

	res := []*ask.Ask{}
	if err := im.q.Search(c, domain.TableAsks, offset, limit, sort, qry, &res); err != nil {
		c.WithField("err", err).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) FindOne(c ctx.Ctx, id ask.Id) (*ask.Ask, error) {
	res := &ask.Ask{}

	qry, err := mongoclient.MakeBsonM(&ask.Id{
		ChainId:         id.ChainId,
		ContractAddress: id.ContractAddress.ToLower(),
		TokenId:         id.TokenId,
	})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return nil, err
	}
	if err := im.q.FindOne(c, domain.TableAsks, qry, res); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) Upsert(c ctx.Ctx, value *ask.Ask) error {
	value.ContractAddress = value.ContractAddress.ToLower()
	value.Seller = value.Seller.ToLower()

	slr, err := mongoclient.MakeBsonM(&ask.Id{
		ChainId:         value.ChainId,
		ContractAddress: value.ContractAddress,
		TokenId:         value.TokenId,
	})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return err
	}
	if err := im.q.Upsert(c, domain.TableAsks, slr, value); err != nil {
		c.WithFields(log.Fields{"err": err, "ask": *value}).Error("q.Upsert failed")
		return err
	}
	return nil
}

func (im *impl) Remove(c ctx.Ctx, id ask.Id) error {
	slr, err := mongoclient.MakeBsonM(&ask.Id{
		ChainId:         id.ChainId,
		ContractAddress: id.ContractAddress.ToLower(),
		TokenId:         id.TokenId,
	})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return err
	}
	if err := im.q.Remove(c, domain.TableAsks, slr); err == query.ErrNotFound {
		return domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.Remove failed")
		return err
	}
	return nil
}
