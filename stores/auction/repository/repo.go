package repository

import (
	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/database/mongoclient"
	"github.com/modx-xyz/exchange/base/log"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/auction"
	"github.com/modx-xyz/exchange/service/query"
)

type impl struct {
	q query.Mongo
}

func New(q query.Mongo) auction.Repo {
	return &impl{q}
}

func makeIdSelector(c ctx.Ctx, id auction.Id) (interface{}, error) {
	slr, err := mongoclient.MakeBsonM(&auction.Id{
		ChainId:         id.ChainId,
		ContractAddress: id.ContractAddress.ToLower(),
		TokenId:         id.TokenId,
	})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return nil, err
	}
	return slr, nil
}

func (im *impl) FindAll(c ctx.Ctx, optFns ...auction.FindAllOptionsFunc) ([]*auction.Auction, error) {
	opts, err := auction.GetFindAllOptions(optFns...)
	if err != nil {
		c.WithField("err", err).Error("auction.GetFindAllOptions failed")
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

	res := []*auction.Auction{}
	if err := im.q.Search(c, domain.TableAuctions, offset, limit, sort, qry, &res); err != nil {
		c.WithField("err", err).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) FindOne(c ctx.Ctx, id auction.Id) (*auction.Auction, error) {
	slr, err := makeIdSelector(c, id)
	if err != nil {
		return nil, err
	}

	res := &auction.Auction{}
	if err := im.q.FindOne(c, domain.TableAuctions, slr, res); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) Upsert(c ctx.Ctx, value *auction.Auction) error {
	value.ContractAddress = value.ContractAddress.ToLower()
	value.Seller = value.Seller.ToLower()

	slr, err := makeIdSelector(c, value.ToId())
	if err != nil {
		return err
	}
	if err := im.q.Upsert(c, domain.TableAuctions, slr, value); err != nil {
		c.WithFields(log.Fields{"err": err, "auction": *value}).Error("q.Upsert failed")
		return err
	}
	return nil
}

func (im *impl) Remove(c ctx.Ctx, id auction.Id) error {
	slr, err := makeIdSelector(c, id)
	if err != nil {
		return err
	}
	if err := im.q.Remove(c, domain.TableAuctions, slr); err == query.ErrNotFound {
		return domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.Remove failed")
		return err
	}
	return nil
}

func (im *impl) FindOngoing(c ctx.Ctx, id auction.Id) (*auction.Ongoing, error) {
	slr, err := makeIdSelector(c, id)
	if err != nil {
		return nil, err
	}

	res := &auction.Ongoing{}
	if err := im.q.FindOne(c, domain.TableOngoingAuctions, slr, res); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) UpsertOngoing(c ctx.Ctx, value *auction.Ongoing) error {
	value.ContractAddress = value.ContractAddress.ToLower()
	value.HighestBidder = value.HighestBidder.ToLower()
	value.Finder = value.Finder.ToLower()

	slr, err := makeIdSelector(c, value.ToId())
	if err != nil {
		return err
	}
	if err := im.q.Upsert(c, domain.TableOngoingAuctions, slr, value); err != nil {
		c.WithFields(log.Fields{"err": err, "ongoing": *value}).Error("q.Upsert failed")
		return err
	}
	return nil
}

func (im *impl) RemoveOngoing(c ctx.Ctx, id auction.Id) error {
	slr, err := makeIdSelector(c, id)
	if err != nil {
		return err
	}
	if err := im.q.Remove(c, domain.TableOngoingAuctions, slr); err == query.ErrNotFound {
		return domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.Remove failed")
		return err
	}
	return nil
}

func (im *impl) RemoveBoth(c ctx.Ctx, id auction.Id) error {
	return im.q.RunWithTransaction(c, func(c ctx.Ctx) error {
		if err := im.Remove(c, id); err != nil {
			return err
		}
		if err := im.RemoveOngoing(c, id); err != nil && err != domain.ErrNotFound {
			return err
		}
		return nil
	})
}
