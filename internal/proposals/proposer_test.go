package proposals

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/internal/candidates"
	"github.com/angelmondragon/surplus-engine/internal/fooditems"
	"github.com/angelmondragon/surplus-engine/internal/matches"
	"github.com/angelmondragon/surplus-engine/pkg/config"
	"github.com/angelmondragon/surplus-engine/pkg/db/dbtest"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/oracle"
	"github.com/angelmondragon/surplus-engine/pkg/outbox"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

type staticCandidates struct {
	found []candidates.Candidate
}

func (s staticCandidates) FindCandidates(context.Context, models.FoodItem) ([]candidates.Candidate, error) {
	return s.found, nil
}

type dbProfiles struct {
	conn *gorm.DB
}

func (p dbProfiles) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := p.conn.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type runCounter struct {
	mu      sync.Mutex
	results map[string]int
	dropped int
}

func newRunCounter() *runCounter { return &runCounter{results: map[string]int{}} }

func (c *runCounter) IncProposalRun(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[result]++
}

func (c *runCounter) IncDispatchDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped++
}

func (c *runCounter) count(result string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[result]
}

type fixture struct {
	conn    *gorm.DB
	metrics *runCounter
	matches matches.Service
	foods   fooditems.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Client(t)
	svc, err := matches.NewService(matches.ServiceParams{
		Repo:     matches.NewRepository(client.DB()),
		Tx:       client,
		Outbox:   outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Profiles: dbProfiles{conn: client.DB()},
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	return &fixture{
		conn:    client.DB(),
		metrics: newRunCounter(),
		matches: svc,
		foods:   fooditems.NewRepository(client.DB()),
	}
}

func (f *fixture) proposer(t *testing.T, found []candidates.Candidate, scorer scorer) *Proposer {
	t.Helper()
	p, err := NewProposer(ProposerParams{
		Foods:      f.foods,
		Candidates: staticCandidates{found: found},
		Oracle:     scorer,
		Matches:    f.matches,
		Metrics:    f.metrics,
		Logger:     quietLogger(),
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) recipient(t *testing.T) candidates.Candidate {
	t.Helper()
	capacity := 50
	user := dbtest.SeedUser(t, f.conn, enums.UserRoleRecipient, func(u *models.User) {
		u.ServingCapacity = &capacity
		u.Location = &types.GeographyPoint{Lat: 40.72, Lng: -74.0}
	})
	return candidates.Candidate{Recipient: user, DistanceKm: 1}
}

func (f *fixture) matchCount(t *testing.T, foodItemID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.Match{}).Where("food_item_id = ?", foodItemID).Count(&n).Error)
	return n
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard})
}

func oracleServer(t *testing.T, handler http.HandlerFunc) *oracle.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := oracle.NewClient(config.OracleConfig{BaseURL: srv.URL, MatchTimeout: 100 * time.Millisecond})
	require.NoError(t, err)
	return client
}

func TestNewProposerRequiresDependencies(t *testing.T) {
	_, err := NewProposer(ProposerParams{})
	require.Error(t, err)
}

func TestProposeStoresOracleScores(t *testing.T) {
	f := newFixture(t)
	business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
	item := dbtest.SeedFoodItem(t, f.conn, business.ID)
	near := f.recipient(t)
	far := f.recipient(t)
	stranger := uuid.New()

	client := oracleServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req oracle.MatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Recipients, 2)
		require.Equal(t, item.ID, req.FoodItem.ID)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"matches": []map[string]any{
				{
					"recipient_id": near.Recipient.ID, "score": 0.91, "distance_km": 1.2,
					"urgency_score": 0.4, "capacity_score": 0.8, "preference_score": 1,
					"estimated_impact": map[string]any{"meals_provided": 12, "people_served": 12, "co2_saved_kg": 10, "money_saved_usd": 20},
				},
				{"recipient_id": far.Recipient.ID, "score": 1.7, "distance_km": 30},
				{"recipient_id": stranger, "score": 0.99},
			},
		})
	})

	created, err := f.proposer(t, []candidates.Candidate{near, far}, client).Propose(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Equal(t, 1, f.metrics.count(ResultCreated))

	byRecipient := map[uuid.UUID]models.Match{}
	for _, m := range created {
		require.Equal(t, enums.MatchStatusPending, m.Status)
		byRecipient[m.RecipientID] = m
	}
	require.NotContains(t, byRecipient, stranger)

	nearMatch := byRecipient[near.Recipient.ID]
	require.InDelta(t, 0.91, nearMatch.ScoreOverall, 1e-9)
	require.Equal(t, enums.ScoreSourceOracle, nearMatch.ScoreSource)
	require.Equal(t, 12, nearMatch.ImpactMealsProvided)
	require.True(t, decimal.NewFromInt(20).Equal(nearMatch.ImpactMoneySaved))

	// Out of range scores are clamped; missing impact falls back to local formulas.
	farMatch := byRecipient[far.Recipient.ID]
	require.Equal(t, 1.0, farMatch.ScoreOverall)
	require.Equal(t, 10, farMatch.ImpactMealsProvided)
	require.Equal(t, 50, farMatch.ImpactPeopleServed)

	require.Equal(t, enums.FoodItemStatusAvailable, f.item(t, item.ID).Status)
}

func TestProposeOracleTimeoutCreatesNothing(t *testing.T) {
	f := newFixture(t)
	business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
	item := dbtest.SeedFoodItem(t, f.conn, business.ID)

	client := oracleServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	created, err := f.proposer(t, []candidates.Candidate{f.recipient(t)}, client).Propose(context.Background(), item.ID)
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOracleUnavailable))
	require.Empty(t, created)
	require.Zero(t, f.matchCount(t, item.ID))
	require.Equal(t, enums.FoodItemStatusAvailable, f.item(t, item.ID).Status)
	require.Equal(t, 1, f.metrics.count(ResultOracleUnavailable))
}

func TestProposeSkipsWithoutWork(t *testing.T) {
	f := newFixture(t)
	business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
	claimed := dbtest.SeedFoodItem(t, f.conn, business.ID, func(i *models.FoodItem) {
		i.Status = enums.FoodItemStatusClaimed
	})
	available := dbtest.SeedFoodItem(t, f.conn, business.ID)

	var calls atomic.Int32
	client := oracleServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"matches":[]}`))
	})

	p := f.proposer(t, []candidates.Candidate{f.recipient(t)}, client)
	created, err := p.Propose(context.Background(), claimed.ID)
	require.NoError(t, err)
	require.Empty(t, created)
	require.Equal(t, 1, f.metrics.count(ResultStale))

	created, err = p.Propose(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Empty(t, created)
	require.Equal(t, 2, f.metrics.count(ResultStale))
	require.Zero(t, calls.Load())

	created, err = p.Propose(context.Background(), available.ID)
	require.NoError(t, err)
	require.Empty(t, created)
	require.Equal(t, 1, f.metrics.count(ResultNoMatches))
	require.EqualValues(t, 1, calls.Load())

	none := f.proposer(t, nil, client)
	created, err = none.Propose(context.Background(), available.ID)
	require.NoError(t, err)
	require.Empty(t, created)
	require.Equal(t, 1, f.metrics.count(ResultNoCandidates))
}

func (f *fixture) item(t *testing.T, id uuid.UUID) models.FoodItem {
	t.Helper()
	var item models.FoodItem
	require.NoError(t, f.conn.First(&item, "id = ?", id).Error)
	return item
}
