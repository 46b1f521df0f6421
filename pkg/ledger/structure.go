package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/mcclellann/pundLedger/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var maxInterest = decimal.NewFromInt(100)

// StructureParams are the rules an owner sets for a pund. A nil
// EffectiveFrom means today.
type StructureParams struct {
	SavingAmount           decimal.Decimal `json:"saving_amount"`
	LoanInterestPercentage decimal.Decimal `json:"loan_interest_percentage"`
	MissedSavingPenalty    decimal.Decimal `json:"missed_saving_penalty"`
	MissedLoanPenalty      decimal.Decimal `json:"missed_loan_penalty"`
	DefaultLoanCycles      int             `json:"default_loan_cycles"`
	EffectiveFrom          *time.Time      `json:"effective_from,omitempty"`
}

func (p StructureParams) validate(today time.Time) error {
	var v apperr.Validation
	v.Check(p.SavingAmount.IsPositive(), "saving_amount", "must be greater than 0")
	v.Check(!p.LoanInterestPercentage.IsNegative() && !p.LoanInterestPercentage.GreaterThan(maxInterest),
		"loan_interest_percentage", "must be between 0 and 100")
	v.Check(!p.MissedSavingPenalty.IsNegative(), "missed_saving_penalty", "must not be negative")
	v.Check(!p.MissedLoanPenalty.IsNegative(), "missed_loan_penalty", "must not be negative")
	v.Check(p.DefaultLoanCycles >= 1, "default_loan_cycles", "must be at least 1")
	if p.EffectiveFrom != nil {
		v.Check(!models.Date(*p.EffectiveFrom).Before(today), "effective_from", "must not be in the past")
	}
	return v.Err()
}

// SetStructure adds a structure version to a pund. A version with the same
// effective date is replaced in place while no cycle has been generated
// under it; once one has, the change needs a later effective date.
func (l *Ledger) SetStructure(ctx context.Context, pundID, actor uuid.UUID, params StructureParams) (*models.Structure, error) {
	now := l.clock()
	today := models.Date(now)

	var result *models.Structure
	err := l.mutate(ctx, pundID, func(tx store.Tx, pund *models.Pund) error {
		if err := requireOwner(ctx, tx, pundID, actor); err != nil {
			return err
		}
		if err := requireActive(pund); err != nil {
			return err
		}
		if err := params.validate(today); err != nil {
			return err
		}

		effective := today
		if params.EffectiveFrom != nil {
			effective = models.Date(*params.EffectiveFrom)
		}

		versions, err := tx.ListStructures(ctx, pundID)
		if err != nil {
			return err
		}
		var existing *models.Structure
		for _, s := range versions {
			if models.Date(s.EffectiveFrom).Equal(effective) {
				existing = s
				break
			}
		}

		if existing != nil {
			cycles, err := tx.ListCycles(ctx, pundID)
			if err != nil {
				return err
			}
			for _, c := range cycles {
				if c.StructureID == existing.ID {
					return apperr.InvalidState("the structure effective %s already applies to cycle %d, choose a later effective date",
						effective.Format(time.DateOnly), c.Sequence)
				}
			}
		}

		s := existing
		if s == nil {
			s = &models.Structure{
				ID:            uuid.New(),
				PundID:        pundID,
				EffectiveFrom: effective,
				CreatedAt:     now,
			}
		}
		s.SavingAmount = params.SavingAmount
		s.LoanInterestPercentage = params.LoanInterestPercentage
		s.MissedSavingPenalty = params.MissedSavingPenalty
		s.MissedLoanPenalty = params.MissedLoanPenalty
		s.DefaultLoanCycles = params.DefaultLoanCycles

		if existing != nil {
			err = tx.UpdateStructure(ctx, s)
		} else {
			err = tx.CreateStructure(ctx, s)
		}
		if err != nil {
			return err
		}
		result = s
		return l.audit(ctx, tx, pundID, actor, models.AuditStructureUpdated,
			"Saving amount %s, interest %s%%, effective from %s",
			s.SavingAmount.StringFixed(2), s.LoanInterestPercentage.String(), effective.Format(time.DateOnly))
	})
	if err != nil {
		return nil, err
	}
	l.logger.WithFields(logrus.Fields{"pund_id": pundID, "structure_id": result.ID}).Info("Structure updated")
	return result, nil
}

// ActiveStructure returns the structure in force for a pund on asOf.
func (l *Ledger) ActiveStructure(ctx context.Context, pundID uuid.UUID, asOf time.Time) (*models.Structure, error) {
	return activeStructure(ctx, l.storage, pundID, asOf)
}

func activeStructure(ctx context.Context, tx store.Tx, pundID uuid.UUID, asOf time.Time) (*models.Structure, error) {
	versions, err := tx.ListStructures(ctx, pundID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, apperr.NoStructure("no structure has been set for this pund")
	}
	for _, s := range versions {
		if s.IsEffective(asOf) {
			return s, nil
		}
	}
	return nil, apperr.StructureNotEffective("structure is not effective until %s",
		versions[len(versions)-1].EffectiveFrom.Format(time.DateOnly))
}

// pendingStructure returns the next version that is not yet effective, if any.
func pendingStructure(versions []*models.Structure, asOf time.Time) *models.Structure {
	var next *models.Structure
	for _, s := range versions {
		if s.IsEffective(asOf) {
			break
		}
		next = s
	}
	return next
}
