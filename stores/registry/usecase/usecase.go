package usecase

import (
	"math/big"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/registry"
)

type RegistryUseCaseCfg struct {
	FeeSettings     registry.FeeSettingsRepo
	ModuleApprovals registry.ModuleApprovalsRepo
}

type impl struct {
	feeSettings     registry.FeeSettingsRepo
	moduleApprovals registry.ModuleApprovalsRepo
}

func New(cfg *RegistryUseCaseCfg) registry.UseCase {
	return &impl{
		feeSettings:     cfg.FeeSettings,
		moduleApprovals: cfg.ModuleApprovals,
	}
}

func (im *impl) IsModuleApproved(c ctx.Ctx, user, module domain.Address) (bool, error) {
	approval, err := im.moduleApprovals.FindOne(c, registry.ModuleApprovalId{User: user, Module: module})
	if err == domain.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return approval.Approved, nil
}

func (im *impl) SetModuleApproval(c ctx.Ctx, user, module domain.Address, approved bool) error {
	return im.moduleApprovals.Upsert(c, &registry.ModuleApproval{
		User:     user,
		Module:   module,
		Approved: approved,
	})
}

func (im *impl) GetFeeAmount(c ctx.Ctx, module domain.Address, amount *big.Int) (*big.Int, error) {
	setting, err := im.feeSettings.FindOne(c, registry.FeeSettingId{Module: module})
	if err == domain.ErrNotFound {
		return new(big.Int), nil
	} else if err != nil {
		return nil, err
	}
	return setting.FeeBps.Of(amount), nil
}

func (im *impl) FeeRecipient(c ctx.Ctx, module domain.Address) (domain.Address, error) {
	setting, err := im.feeSettings.FindOne(c, registry.FeeSettingId{Module: module})
	if err == domain.ErrNotFound {
		return domain.EmptyAddress, nil
	} else if err != nil {
		return domain.EmptyAddress, err
	}
	return setting.Recipient, nil
}

func (im *impl) SetFeeSetting(c ctx.Ctx, setting *registry.FeeSetting) error {
	if !setting.FeeBps.Valid() {
		return domain.ErrInvalidFeeBps
	}
	if setting.FeeBps > 0 && setting.Recipient.IsEmpty() {
		return domain.ErrInvalidFundsRecipient
	}
	if setting.FeeBps == 0 {
		err := im.feeSettings.Remove(c, registry.FeeSettingId{Module: setting.Module})
		if err == domain.ErrNotFound {
			return nil
		}
		return err
	}
	return im.feeSettings.Upsert(c, setting)
}

func (im *impl) GetFeeSettings(c ctx.Ctx) ([]*registry.FeeSetting, error) {
	return im.feeSettings.FindAll(c)
}
