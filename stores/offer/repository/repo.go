package repository

import (
	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/database/mongoclient"
	"github.com/modx-xyz/exchange/base/log"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/exchange"
	"github.com/modx-xyz/exchange/domain/offer"
	"github.com/modx-xyz/exchange/service/query"
)

type impl struct {
	q query.Mongo
}

func New(q query.Mongo) offer.Repo {
	return &impl{q}
}

func (im *impl) FindAll(c ctx.Ctx, optFns ...offer.FindAllOptionsFunc) ([]*offer.Offer, error) {
	opts, err := offer.GetFindAllOptions(optFns...)
	if err != nil {
		c.WithField("err", err).Error("offer.GetFindAllOptions failed")
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

	res := []*offer.Offer{}
	if err := im.q.Search(c, domain.TableOffers, offset, limit, sort, qry, &res); err != nil {
		c.WithField("err", err).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) FindOne(c ctx.Ctx, id offer.Id) (*offer.Offer, error) {
	res := &offer.Offer{}

	qry, err := mongoclient.MakeBsonM(&offer.Id{
		ChainId:         id.ChainId,
		ContractAddress: id.ContractAddress.ToLower(),
		TokenId:         id.TokenId,
		OfferId:         id.OfferId,
	})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return nil, err
	}
	if err := im.q.FindOne(c, domain.TableOffers, qry, res); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) Upsert(c ctx.Ctx, value *offer.Offer) error {
	value.ContractAddress = value.ContractAddress.ToLower()
	value.Buyer = value.Buyer.ToLower()

	slr, err := mongoclient.MakeBsonM(&offer.Id{
		ChainId:         value.ChainId,
		ContractAddress: value.ContractAddress,
		TokenId:         value.TokenId,
		OfferId:         value.OfferId,
	})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return err
	}
	if err := im.q.Upsert(c, domain.TableOffers, slr, value); err != nil {
		c.WithFields(log.Fields{"err": err, "offer": *value}).Error("q.Upsert failed")
		return err
	}
	return nil
}

func (im *impl) Remove(c ctx.Ctx, id offer.Id) error {
	slr, err := mongoclient.MakeBsonM(&offer.Id{
		ChainId:         id.ChainId,
		ContractAddress: id.ContractAddress.ToLower(),
		TokenId:         id.TokenId,
		OfferId:         id.OfferId,
	})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return err
	}
	if err := im.q.Remove(c, domain.TableOffers, slr); err == query.ErrNotFound {
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

func (im *impl) NextOfferId(c ctx.Ctx, nftId exchange.NftId) (uint64, error) {
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
	if err := im.q.Increment(c, domain.TableOfferCounters, slr, res, "next", 1); err != nil {
		c.WithField("err", err).Error("q.Increment failed")
		return 0, err
	}
	return res.Next, nil
}
