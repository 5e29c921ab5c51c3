package matches

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/pagination"
)

// Repository defines persistence for matches and the food item columns the
// match lifecycle owns (status, assignment, delivery).
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, match *models.Match) error
	CreateInterest(ctx context.Context, interest *models.FoodItemInterest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Match, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Match, error)
	FindFoodItem(ctx context.Context, id uuid.UUID) (*models.FoodItem, error)
	LockFoodItem(ctx context.Context, id uuid.UUID) (*models.FoodItem, error)
	ClaimFoodItem(ctx context.Context, foodItemID, recipientID uuid.UUID, now time.Time) (int64, error)
	UpdateFoodItem(ctx context.Context, foodItemID uuid.UUID, from []enums.FoodItemStatus, updates map[string]any) (int64, error)
	Transition(ctx context.Context, matchID uuid.UUID, from []enums.MatchStatus, updates map[string]any) (int64, error)
	AssignDriver(ctx context.Context, matchID, driverID uuid.UUID, now time.Time) (int64, error)
	DeclineSiblings(ctx context.Context, foodItemID, winnerID uuid.UUID, now time.Time) ([]uuid.UUID, error)
	SetInterestStatus(ctx context.Context, matchIDs []uuid.UUID, status enums.MatchStatus) error
	CountAccepted(ctx context.Context, foodItemID, exceptID uuid.UUID) (int64, error)
	PendingRecipients(ctx context.Context, foodItemID uuid.UUID) (map[uuid.UUID]bool, error)
	List(ctx context.Context, filters ListFilters) ([]models.Match, int64, error)
	ListAvailableDeliveries(ctx context.Context, page pagination.Page) ([]models.Match, int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type profileLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type acceptRecorder interface {
	IncAccept(outcome string)
}
