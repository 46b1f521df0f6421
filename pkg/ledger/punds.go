package ledger

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/mcclellann/pundLedger/pkg/store"
	"github.com/sirupsen/logrus"
)

const maxPundNameLength = 100

// CreatePund creates a pund owned by actor. The start date anchors the cycle
// calendar.
func (l *Ledger) CreatePund(ctx context.Context, actor uuid.UUID, name string, pundType models.PundType, description string) (*models.Pund, error) {
	name = strings.TrimSpace(name)
	var v apperr.Validation
	v.Check(name != "", "name", "is required")
	v.Check(len(name) <= maxPundNameLength, "name", "is too long")
	v.Check(pundType.Valid(), "pund_type", "must be DAILY, WEEKLY or MONTHLY")
	if err := v.Err(); err != nil {
		return nil, err
	}

	now := l.clock()
	pund := &models.Pund{
		ID:          uuid.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Type:        pundType,
		IsActive:    true,
		OwnerID:     actor,
		StartDate:   models.Date(now),
		CreatedAt:   now,
	}

	err := l.storage.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, actor); err != nil {
			return err
		}
		if err := tx.CreatePund(ctx, pund); err != nil {
			return err
		}
		owner := &models.Membership{
			ID:       uuid.New(),
			UserID:   actor,
			PundID:   pund.ID,
			Role:     models.RoleOwner,
			IsActive: true,
			JoinedAt: now,
		}
		if err := tx.CreateMembership(ctx, owner); err != nil {
			return err
		}
		return l.audit(ctx, tx, pund.ID, actor, models.AuditPundCreated, "Pund %s created", pund.Name)
	})
	if err != nil {
		return nil, err
	}
	l.logger.WithFields(logrus.Fields{"pund_id": pund.ID, "owner_id": actor}).Info("Pund created")
	return pund, nil
}

// MemberParams identify the person being added to a pund.
type MemberParams struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

// AddMember adds a user to a pund, inviting them first when they have no
// account yet. Invited users stay inactive until they register.
func (l *Ledger) AddMember(ctx context.Context, pundID, actor uuid.UUID, params MemberParams) (*models.Membership, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	var v apperr.Validation
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		v.Add("email", "must be a valid email address")
	}
	v.Check(strings.TrimSpace(params.Name) != "", "name", "is required")
	if err := v.Err(); err != nil {
		return nil, err
	}

	now := l.clock()
	var membership *models.Membership
	err := l.mutate(ctx, pundID, func(tx store.Tx, pund *models.Pund) error {
		if err := requireOwner(ctx, tx, pundID, actor); err != nil {
			return err
		}
		if err := requireActive(pund); err != nil {
			return err
		}

		user, err := tx.GetUserByEmail(ctx, email)
		switch {
		case apperr.Is(err, apperr.KindNotFound):
			user = &models.User{
				ID:        uuid.New(),
				Email:     email,
				Name:      strings.TrimSpace(params.Name),
				Mobile:    strings.TrimSpace(params.Mobile),
				CreatedAt: now,
			}
			if err := tx.CreateUser(ctx, user); err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if _, err := tx.GetMembership(ctx, pundID, user.ID); err == nil {
			return apperr.InvalidState("%s is already a member of this pund", email)
		} else if !apperr.Is(err, apperr.KindNotFound) {
			return err
		}

		membership = &models.Membership{
			ID:       uuid.New(),
			UserID:   user.ID,
			PundID:   pundID,
			Role:     models.RoleMember,
			IsActive: true,
			JoinedAt: now,
			Email:    user.Email,
			Name:     user.Name,
		}
		if err := tx.CreateMembership(ctx, membership); err != nil {
			return err
		}
		return l.audit(ctx, tx, pundID, actor, models.AuditMemberAdded, "Member %s added", user.Email)
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// ClosePund deactivates a pund and every membership in it.
func (l *Ledger) ClosePund(ctx context.Context, pundID, actor uuid.UUID) error {
	return l.setPundActive(ctx, pundID, actor, false)
}

// ReopenPund reactivates a closed pund and its memberships.
func (l *Ledger) ReopenPund(ctx context.Context, pundID, actor uuid.UUID) error {
	return l.setPundActive(ctx, pundID, actor, true)
}

func (l *Ledger) setPundActive(ctx context.Context, pundID, actor uuid.UUID, active bool) error {
	return l.mutate(ctx, pundID, func(tx store.Tx, pund *models.Pund) error {
		if err := requireOwner(ctx, tx, pundID, actor); err != nil {
			return err
		}
		if pund.IsActive == active {
			if active {
				return apperr.InvalidState("pund %q is already open", pund.Name)
			}
			return apperr.InvalidState("pund %q is already closed", pund.Name)
		}

		pund.IsActive = active
		if err := tx.UpdatePund(ctx, pund); err != nil {
			return err
		}
		if err := tx.SetMembershipsActive(ctx, pundID, active); err != nil {
			return err
		}
		if active {
			return l.audit(ctx, tx, pundID, actor, models.AuditPundReopened, "Pund %s reopened", pund.Name)
		}
		return l.audit(ctx, tx, pundID, actor, models.AuditPundClosed, "Pund %s closed", pund.Name)
	})
}

// PundDetail returns the caller's view of a pund. Owners see the member
// list, members see their own payments.
func (l *Ledger) PundDetail(ctx context.Context, pundID, actor uuid.UUID) (*models.PundDetail, error) {
	pund, err := l.storage.GetPund(ctx, pundID)
	if err != nil {
		return nil, err
	}
	m, err := membershipOf(ctx, l.storage, pundID, actor)
	if err != nil {
		return nil, err
	}

	versions, err := l.storage.ListStructures(ctx, pundID)
	if err != nil {
		return nil, err
	}
	now := l.clock()
	detail := &models.PundDetail{
		Pund:             pund,
		Role:             m.Role,
		MembershipActive: m.IsActive,
		PendingStructure: pendingStructure(versions, now),
	}
	for _, s := range versions {
		if s.IsEffective(now) {
			detail.Structure = s
			break
		}
	}

	if m.Role == models.RoleOwner {
		members, err := l.storage.ListMemberships(ctx, pundID)
		if err != nil {
			return nil, err
		}
		detail.Members = members
		detail.TotalMembers = len(members)
		return detail, nil
	}

	payments, err := l.storage.ListMemberPayments(ctx, actor)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		if p.PundID == pundID {
			detail.MyPayments = append(detail.MyPayments, p)
		}
	}
	return detail, nil
}

// MyPunds lists every pund the caller belongs to, active or not.
func (l *Ledger) MyPunds(ctx context.Context, actor uuid.UUID) ([]*models.MyPund, error) {
	memberships, err := l.storage.ListUserMemberships(ctx, actor)
	if err != nil {
		return nil, err
	}
	out := make([]*models.MyPund, 0, len(memberships))
	for _, m := range memberships {
		pund, err := l.storage.GetPund(ctx, m.PundID)
		if err != nil {
			return nil, err
		}
		out = append(out, &models.MyPund{
			PundID:           pund.ID,
			PundName:         pund.Name,
			PundType:         pund.Type,
			PundActive:       pund.IsActive,
			MembershipActive: m.IsActive,
			Role:             m.Role,
		})
	}
	return out, nil
}
