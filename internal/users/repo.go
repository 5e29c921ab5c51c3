package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/surplus-engine/internal/repo"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Rebind(tx)}
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return repo.First[models.User](r.DB(ctx), "id = ?", id)
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return repo.First[models.User](r.DB(ctx), "email = ?", email)
}

// Create inserts a new profile keyed by the identity provider's user id.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return r.DB(ctx).Create(user).Error
}

// Update applies column updates to a profile.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.DB(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
}

// Within returns active users of role located within radiusMeters of center,
// nearest first. Requires PostGIS.
func (r *Repository) Within(ctx context.Context, center types.GeographyPoint, radiusMeters float64, role enums.UserRole, limit int) ([]models.User, error) {
	point := clause.Expr{SQL: "ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography", Vars: []any{center.Lng, center.Lat}}

	var users []models.User
	err := r.DB(ctx).
		Where("role = ? AND is_active AND location IS NOT NULL", role).
		Where("ST_DWithin(location, ?, ?)", point, radiusMeters).
		Clauses(clause.OrderBy{Expression: clause.Expr{SQL: "location <-> ?", Vars: []any{point}}}).
		Limit(limit).
		Find(&users).Error
	return users, err
}

// RecipientsWithin is the candidate index used by the matching engine.
func (r *Repository) RecipientsWithin(ctx context.Context, center types.GeographyPoint, radiusMeters float64, limit int) ([]models.User, error) {
	return r.Within(ctx, center, radiusMeters, enums.UserRoleRecipient, limit)
}
