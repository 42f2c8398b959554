package repository

import (
	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/database/mongoclient"
	"github.com/modx-xyz/exchange/base/log"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/exchange"
	"github.com/modx-xyz/exchange/domain/put"
	"github.com/modx-xyz/exchange/service/query"
)

type impl struct {
	q query.Mongo
}

func New(q query.Mongo) put.Repo {
	return &impl{q}
}

func makeIdSelector(c ctx.Ctx, id put.Id) (interface{}, error) {
	slr, err := mongoclient.MakeBsonM(&put.Id{
		ChainId:         id.ChainId,
		ContractAddress: id.ContractAddress.ToLower(),
		TokenId:         id.TokenId,
		PutId:           id.PutId,
	})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return nil, err
	}
	return slr, nil
}

func (im *impl) FindAll(c ctx.Ctx, optFns ...put.FindAllOptionsFunc) ([]*put.Put, error) {
	opts, err := put.GetFindAllOptions(optFns...)
	if err != nil {
		c.WithField("err", err).Error("put.GetFindAllOptions failed")
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

	res := []*put.Put{}
	if err := im.q.Search(c, domain.TablePuts, offset, limit, sort, qry, &res); err != nil {
		c.WithField("err", err).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) FindOne(c ctx.Ctx, id put.Id) (*put.Put, error) {
	slr, err := makeIdSelector(c, id)
	if err != nil {
		return nil, err
	}

	res := &put.Put{}
	if err := im.q.FindOne(c, domain.TablePuts, slr, res); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) Upsert(c ctx.Ctx, value *put.Put) error {
	value.ContractAddress = value.ContractAddress.ToLower()
	value.Seller = value.Seller.ToLower()
	value.Buyer = value.Buyer.ToLower()

	slr, err := makeIdSelector(c, value.ToId())
	if err != nil {
		return err
	}
	if err := im.q.Upsert(c, domain.TablePuts, slr, value); err != nil {
		c.WithFields(log.Fields{"err": err, "put": *value}).Error("q.Upsert failed")
		return err
	}
	return nil
}

func (im *impl) Remove(c ctx.Ctx, id put.Id) error {
	slr, err := makeIdSelector(c, id)
	if err != nil {
		return err
	}
	if err := im.q.Remove(c, domain.TablePuts, slr); err == query.ErrNotFound {
		return domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.Remove failed")
		return err
	}
	return nil
}

type counter struct {
	Next uint64 `bson:"next"`
}

func (im *impl) NextPutId(c ctx.Ctx, nftId exchange.NftId) (uint64, error) {
	slr, err := mongoclient.MakeBsonM(&exchange.NftId{
		ChainId:         nftId.ChainId,
		ContractAddress: nftId.ContractAddress.ToLower(),
		TokenId:         nftId.TokenId,
	})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return 0, err
	}

	res := &counter{}
	if err := im.q.Increment(c, domain.TablePutCounters, slr, res, "next", 1); err != nil {
		c.WithField("err", err).Error("q.Increment failed")
		return 0, err
	}
	return res.Next, nil
}
