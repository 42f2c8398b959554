package repository

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/log"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/activity"
	"github.com/modx-xyz/exchange/service/query"
)

type impl struct {
	q query.Mongo
}

func New(q query.Mongo) activity.Repo {
	return &impl{q}
}

func makeFindQuery(optFns ...activity.FindAllOptionsFunc) (bson.M, error) {
	opts, err := activity.GetFindAllOptions(optFns...)
	if err != nil {
		return nil, err
	}

	qry := bson.M{}

	if opts.Account != nil {
		qry["$or"] = bson.A{
			bson.M{"account": *opts.Account},
			bson.M{"to": *opts.Account},
		}
	}
	if opts.ChainId != nil {
		qry["chainId"] = *opts.ChainId
	}
	if opts.ContractAddress != nil {
		qry["contractAddress"] = *opts.ContractAddress
	}
	if opts.TokenId != nil {
		qry["tokenId"] = *opts.TokenId
	}
	if opts.TimeGTE != nil {
		qry["time"] = bson.M{"$gte": *opts.TimeGTE}
	}
	if len(opts.Types) > 1 {
		qry["type"] = bson.M{"$in": opts.Types}
	} else if len(opts.Types) > 0 {
		qry["type"] = opts.Types[0]
	}

	return qry, nil
}

func (im *impl) Insert(c ctx.Ctx, value *activity.Activity) error {
	value.ContractAddress = value.ContractAddress.ToLower()
	value.Account = value.Account.ToLower()
	value.To = value.To.ToLower()

	if err := im.q.Insert(c, domain.TableActivities, value); err != nil {
		c.WithFields(log.Fields{"err": err, "activity": *value}).Error("q.Insert failed")
		return err
	}
	return nil
}

func (im *impl) FindAll(c ctx.Ctx, optFns ...activity.FindAllOptionsFunc) ([]*activity.Activity, error) {
	opts, err := activity.GetFindAllOptions(optFns...)
	if err != nil {
		c.WithField("err", err).Error("activity.GetFindAllOptions failed")
		return nil, err
	}

	qry, err := makeFindQuery(optFns...)
	if err != nil {
		c.WithField("err", err).Error("makeFindQuery failed")
		return nil, err
	}

	var (
		offset int = 0
		limit  int = 0
	)
	if opts.Offset != nil {
		offset = int(*opts.Offset)
	}
	if opts.Limit != nil {
		limit = int(*opts.Limit)
	}

	res := []*activity.Activity{}
	if err := im.q.Search(c, domain.TableActivities, offset, limit, "-time", qry, &res); err != nil {
		c.WithFields(log.Fields{"err": err, "query": qry}).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) Count(c ctx.Ctx, optFns ...activity.FindAllOptionsFunc) (int, error) {
	qry, err := makeFindQuery(optFns...)
	if err != nil {
		c.WithField("err", err).Error("makeFindQuery failed")
		return 0, err
	}

	cnt, err := im.q.Count(c, domain.TableActivities, qry)
	if err != nil {
		c.WithFields(log.Fields{"err": err, "query": qry}).Error("q.Count failed")
		return 0, err
	}
	return cnt, nil
}
