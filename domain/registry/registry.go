package registry

import (
	"math/big"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
)

// FeeSetting is the protocol fee charged to a module's settlements.
type FeeSetting struct {
	Module    domain.Address `json:"module" bson:"module"`
	FeeBps    domain.Bps     `json:"feeBps" bson:"feeBps"`
	Recipient domain.Address `json:"recipient" bson:"recipient"`
}

func (s *FeeSetting) ToId() FeeSettingId {
	return FeeSettingId{Module: s.Module}
}

type FeeSettingId struct {
	Module domain.Address `json:"module" bson:"module"`
}

type ModuleApproval struct {
	User     domain.Address `json:"user" bson:"user"`
	Module   domain.Address `json:"module" bson:"module"`
	Approved bool           `json:"approved" bson:"approved"`
}

func (a *ModuleApproval) ToId() ModuleApprovalId {
	return ModuleApprovalId{User: a.User, Module: a.Module}
}

type ModuleApprovalId struct {
	User   domain.Address `json:"user" bson:"user"`
	Module domain.Address `json:"module" bson:"module"`
}

type FeeSettingsRepo interface {
	FindOne(c ctx.Ctx, id FeeSettingId) (*FeeSetting, error)
	FindAll(c ctx.Ctx) ([]*FeeSetting, error)
	Upsert(c ctx.Ctx, setting *FeeSetting) error
	Remove(c ctx.Ctx, id FeeSettingId) error
}

type ModuleApprovalsRepo interface {
	FindOne(c ctx.Ctx, id ModuleApprovalId) (*ModuleApproval, error)
	Upsert(c ctx.Ctx, approval *ModuleApproval) error
}

// UseCase is the approvals gate plus fee registry every module consults.
type UseCase interface {
	// IsModuleApproved reports whether user allowed module to move their
	// assets. Checked before every incoming pull.
	IsModuleApproved(c ctx.Ctx, user, module domain.Address) (bool, error)
	SetModuleApproval(c ctx.Ctx, user, module domain.Address, approved bool) error

	// GetFeeAmount returns the protocol fee taken from amount for the
	// given module, zero when no setting exists.
	GetFeeAmount(c ctx.Ctx, module domain.Address, amount *big.Int) (*big.Int, error)
	FeeRecipient(c ctx.Ctx, module domain.Address) (domain.Address, error)
	SetFeeSetting(c ctx.Ctx, setting *FeeSetting) error
	GetFeeSettings(c ctx.Ctx) ([]*FeeSetting, error)
}
