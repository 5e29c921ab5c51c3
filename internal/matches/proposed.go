package matches

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/pkg/auth"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
)

// CreateProposed stores oracle proposals as pending matches. The food item row
// is locked first; a response for an item that is no longer available is
// discarded as stale and yields no matches.
func (s *service) CreateProposed(ctx context.Context, foodItemID uuid.UUID, proposals []Proposal) ([]models.Match, error) {
	if len(proposals) == 0 {
		return nil, nil
	}

	logCtx := s.logg.WithFoodItemID(ctx, foodItemID.String())
	var created []models.Match
	var stale bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.LockFoodItem(ctx, foodItemID)
		if err != nil {
			return notFoundOr(err, "food item not found", "load food item")
		}
		now := s.now()
		if item.Status != enums.FoodItemStatusAvailable || !item.ExpiresAt.After(now) {
			stale = true
			return nil
		}

		pending, err := repo.PendingRecipients(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending requests")
		}
		for _, proposal := range proposals {
			if proposal.RecipientID == uuid.Nil || pending[proposal.RecipientID] {
				continue
			}
			if err := proposal.Score.Validate(); err != nil {
				s.logg.Warn(s.logg.WithField(logCtx, "recipient_id", proposal.RecipientID.String()), "discarding proposal with invalid score")
				continue
			}
			match := newMatch(*item, proposal.RecipientID, proposal.Score, proposal.Impact, now)
			if err := s.insert(ctx, tx, repo, &match, *item, auth.Actor{}, true); err != nil {
				return err
			}
			pending[proposal.RecipientID] = true
			created = append(created, match)
		}
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "create proposed matches")
	}

	if stale {
		s.logg.Info(logCtx, "discarding proposals for a food item that is no longer available")
		return nil, nil
	}
	s.logg.Info(s.logg.WithField(logCtx, "count", len(created)), "proposed matches created")
	return created, nil
}
