package repository

import (
	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/database/mongoclient"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/registry"
	"github.com/modx-xyz/exchange/service/query"
)

type moduleApprovalImpl struct {
	q query.Mongo
}

func NewModuleApproval(q query.Mongo) registry.ModuleApprovalsRepo {
	return &moduleApprovalImpl{q}
}

func (im *moduleApprovalImpl) FindOne(c ctx.Ctx, id registry.ModuleApprovalId) (*registry.ModuleApproval, error) {
	res := &registry.ModuleApproval{}

	qry, err := mongoclient.MakeBsonM(&registry.ModuleApprovalId{
		User:   id.User.ToLower(),
		Module: id.Module.ToLower(),
	})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return nil, err
	}
	if err := im.q.FindOne(c, domain.TableModuleApprovals, qry, res); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return res, nil
}

func (im *moduleApprovalImpl) Upsert(c ctx.Ctx, approval *registry.ModuleApproval) error {
	approval.User = approval.User.ToLower()
	approval.Module = approval.Module.ToLower()

	slr, err := mongoclient.MakeBsonM(&registry.ModuleApprovalId{
		User:   approval.User,
		Module: approval.Module,
	})
	if err != nil {
		c.WithField("err", err).Error("mongoclient.MakeBsonM failed")
		return err
	}
	if err := im.q.Upsert(c, domain.TableModuleApprovals, slr, approval); err != nil {
		c.WithField("err", err).Error("q.Upsert failed")
		return err
	}
	return nil
}
