package matches

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/surplus-engine/internal/impact"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/pagination"
)

const (
	maxMessageLen = 300
	maxCommentLen = 1000
)

// RequestInput is a recipient asking for a food item.
type RequestInput struct {
	FoodItemID uuid.UUID
	Message    *string
}

// FeedbackInput is one party's post-completion rating.
type FeedbackInput struct {
	Rating  int
	Comment string
}

// Proposal is one oracle-scored recipient for CreateProposed.
type Proposal struct {
	RecipientID uuid.UUID
	Score       impact.Score
	Impact      impact.Estimate
}

// Scope selects which side of the match the caller sees.
type Scope struct {
	Role   enums.UserRole
	UserID uuid.UUID
}

type ListFilters struct {
	Scope  Scope
	Status *enums.MatchStatus
	Page   pagination.Page
}

type ListResult struct {
	Items []models.Match      `json:"items"`
	Page  pagination.PageMeta `json:"pagination"`
}

// AcceptResult carries the winning match and the siblings declined with it.
type AcceptResult struct {
	Match       models.Match `json:"match"`
	DeclinedIDs []uuid.UUID  `json:"declinedMatchIds"`
}
