package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/counselhub/counselhub/internal/actorctx"
	consultationdomain "github.com/counselhub/counselhub/internal/consultation/domain"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type serviceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"role:user", ObjectConsultation, ActionConsultationCreate},
		{"role:user", ObjectConsultation, ActionConsultationView},
		{"role:user", ObjectConsultation, ActionConsultationRate},
		{"role:user", ObjectConsultation, ActionConsultationCancel},
		{"role:user", ObjectConsultation, ActionConsultationMatch},
		{"role:user", ObjectEscrow, ActionEscrowReserve},
		{"role:user", ObjectUsage, ActionUsageEnforce},
		{"role:user", ObjectUsage, ActionUsageView},

		{"role:advisor", ObjectConsultation, ActionConsultationView},
		{"role:advisor", ObjectAssignment, ActionAssignmentRespond},
		{"role:advisor", ObjectEscrow, ActionEscrowStart},
		{"role:advisor", ObjectEscrow, ActionEscrowComplete},
		{"role:advisor", ObjectUsage, ActionUsageEnforce},
		{"role:advisor", ObjectUsage, ActionUsageView},
		{"role:advisor", ObjectWithdrawal, ActionWithdrawalRequest},
		{"role:advisor", ObjectWithdrawal, ActionWithdrawalView},
		{"role:advisor", ObjectBalance, ActionBalanceView},

		{"role:admin", ObjectConsultation, ActionConsultationCreate},
		{"role:admin", ObjectConsultation, ActionConsultationView},
		{"role:admin", ObjectConsultation, ActionConsultationRate},
		{"role:admin", ObjectConsultation, ActionConsultationCancel},
		{"role:admin", ObjectConsultation, ActionConsultationMatch},
		{"role:admin", ObjectAssignment, ActionAssignmentRespond},
		{"role:admin", ObjectEscrow, ActionEscrowReserve},
		{"role:admin", ObjectEscrow, ActionEscrowStart},
		{"role:admin", ObjectEscrow, ActionEscrowComplete},
		{"role:admin", ObjectEscrow, ActionEscrowRelease},
		{"role:admin", ObjectUsage, ActionUsageEnforce},
		{"role:admin", ObjectUsage, ActionUsageView},
		{"role:admin", ObjectWithdrawal, ActionWithdrawalRequest},
		{"role:admin", ObjectWithdrawal, ActionWithdrawalView},
		{"role:admin", ObjectWithdrawal, ActionWithdrawalDecide},
		{"role:admin", ObjectBalance, ActionBalanceView},
		{"role:admin", ObjectTier, ActionTierView},
		{"role:admin", ObjectTier, ActionTierUpdate},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},
		{"role:admin", ObjectLedger, ActionLedgerAnonymize},
	}
	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy[0], policy[1], policy[2])
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}
	return nil
}

func NewService(p Params) Service {
	return &serviceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *serviceImpl) Authorize(ctx context.Context, object, action string) error {
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok || actor.ID == 0 {
		return ErrInvalidActor
	}

	subject := fmt.Sprintf("%s:%s", actor.Role, actor.ID)
	roleName := fmt.Sprintf("role:%s", strings.ToLower(actor.Role))
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("capability denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *serviceImpl) OwnsRequest(ctx context.Context, request *consultationdomain.ConsultationRequest) error {
	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return ErrInvalidActor
	}
	if actor.Role == actorctx.RoleAdmin {
		return nil
	}
	if request == nil || actor.ID != request.RequesterID {
		return ErrForbidden
	}
	return nil
}

func (s *serviceImpl) IsAssignedAdvisor(ctx context.Context, request *consultationdomain.ConsultationRequest) error {
	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return ErrInvalidActor
	}
	if actor.Role == actorctx.RoleAdmin {
		return nil
	}
	if request == nil || request.AdvisorID == nil || actor.ID != *request.AdvisorID {
		return ErrForbidden
	}
	return nil
}

func (s *serviceImpl) ensureGrouping(subject, roleName string) error {
	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}

	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}
