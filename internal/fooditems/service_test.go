package fooditems

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/pkg/auth"
	"github.com/angelmondragon/surplus-engine/pkg/db/dbtest"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/maps"
	"github.com/angelmondragon/surplus-engine/pkg/outbox"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

type stubProfiles struct {
	users map[uuid.UUID]*models.User
}

func (s stubProfiles) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubGeocoder struct {
	place *maps.Place
	err   error
	calls int
}

func (s *stubGeocoder) Geocode(_ context.Context, _ string) (*maps.Place, error) {
	s.calls++
	return s.place, s.err
}

type recordingDispatcher struct {
	ids []uuid.UUID
}

func (d *recordingDispatcher) Dispatch(id uuid.UUID) bool {
	d.ids = append(d.ids, id)
	return true
}

type fixture struct {
	conn       *gorm.DB
	svc        Service
	profiles   stubProfiles
	geocoder   *stubGeocoder
	dispatcher *recordingDispatcher
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Client(t)
	f := &fixture{
		conn:       client.DB(),
		profiles:   stubProfiles{users: map[uuid.UUID]*models.User{}},
		geocoder:   &stubGeocoder{},
		dispatcher: &recordingDispatcher{},
		now:        time.Now().UTC().Truncate(time.Second),
	}
	svc, err := NewService(ServiceParams{
		Repo:       NewRepository(client.DB()),
		Tx:         client,
		Outbox:     outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Profiles:   f.profiles,
		Geocoder:   f.geocoder,
		Dispatcher: f.dispatcher,
		Logger:     logger.New(logger.Options{Output: io.Discard}),
		Now:        func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) outboxTypes(t *testing.T) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.conn.Order("created_at ASC").Find(&rows).Error)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.EventType)
	}
	return out
}

func businessActor(id uuid.UUID) auth.Actor {
	return auth.Actor{UserID: id, Role: enums.UserRoleBusiness}
}

func validInput(now time.Time) CreateInput {
	return CreateInput{
		Title:          "  Leftover lasagna  ",
		Description:    "Two trays",
		Category:       enums.FoodCategoryMeals,
		QuantityValue:  6,
		QuantityUnit:   enums.QuantityUnitServings,
		EstimatedValue: decimal.RequireFromString("42.5"),
		DietaryInfo:    []string{"vegetarian"},
		Allergens:      []string{"gluten", " "},
		Location:       &types.GeographyPoint{Lat: 40.7, Lng: -74},
		ExpiresAt:      now.Add(3 * time.Hour),
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreateStampsUrgencyEmitsAndDispatches(t *testing.T) {
	f := newFixture(t)
	business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)

	item, err := f.svc.Create(context.Background(), businessActor(business.ID), validInput(f.now))
	require.NoError(t, err)

	require.Equal(t, "Leftover lasagna", item.Title)
	require.Equal(t, enums.UrgencyHigh, item.UrgencyLevel)
	require.Equal(t, enums.FoodItemStatusAvailable, item.Status)
	require.Equal(t, []string{"gluten"}, []string(item.Allergens))
	require.Equal(t, []uuid.UUID{item.ID}, f.dispatcher.ids)
	require.Equal(t, []enums.OutboxEventType{enums.EventFoodPosted}, f.outboxTypes(t))

	stored, err := f.svc.Get(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, business.ID, stored.BusinessID)
	require.InDelta(t, 40.7, stored.Location.Lat, 1e-9)
}

func TestCreateRejectsNonBusinessAndInvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), auth.Actor{UserID: uuid.New(), Role: enums.UserRoleRecipient}, validInput(f.now))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Create(context.Background(), auth.Actor{}, validInput(f.now))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	input := validInput(f.now)
	input.Title = "ab"
	input.QuantityValue = 0
	input.ExpiresAt = f.now.Add(-time.Minute)
	_, err = f.svc.Create(context.Background(), businessActor(uuid.New()), input)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Contains(t, details, "title")
	require.Contains(t, details, "quantity.value")
	require.Contains(t, details, "expiresAt")
	require.Empty(t, f.dispatcher.ids)
}

func TestCreateLocationFallbacks(t *testing.T) {
	t.Run("business profile", func(t *testing.T) {
		f := newFixture(t)
		business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
		address := "1 Main St"
		f.profiles.users[business.ID] = &models.User{
			ID:       business.ID,
			Address:  &address,
			Location: &types.GeographyPoint{Lat: 51.5, Lng: -0.12},
		}

		input := validInput(f.now)
		input.Location = nil
		item, err := f.svc.Create(context.Background(), businessActor(business.ID), input)
		require.NoError(t, err)
		require.InDelta(t, 51.5, item.Location.Lat, 1e-9)
		require.Equal(t, address, item.Address)
		require.Zero(t, f.geocoder.calls)
	})

	t.Run("geocoded address", func(t *testing.T) {
		f := newFixture(t)
		business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
		f.geocoder.place = &maps.Place{
			FormattedAddress: "10 Downing St, London",
			Location:         types.GeographyPoint{Lat: 51.5034, Lng: -0.1276},
		}

		input := validInput(f.now)
		input.Location = nil
		input.Address = "10 downing"
		item, err := f.svc.Create(context.Background(), businessActor(business.ID), input)
		require.NoError(t, err)
		require.Equal(t, 1, f.geocoder.calls)
		require.Equal(t, "10 Downing St, London", item.Address)
	})

	t.Run("nothing to resolve", func(t *testing.T) {
		f := newFixture(t)
		input := validInput(f.now)
		input.Location = nil
		_, err := f.svc.Create(context.Background(), businessActor(uuid.New()), input)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	})
}

func TestUpdateRestampsUrgencyAndGuardsOwnership(t *testing.T) {
	f := newFixture(t)
	business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
	item := dbtest.SeedFoodItem(t, f.conn, business.ID)

	expires := f.now.Add(12 * time.Hour)
	title := "Fresh rolls"
	updated, err := f.svc.Update(context.Background(), businessActor(business.ID), item.ID, UpdateInput{
		Title:     &title,
		ExpiresAt: &expires,
	})
	require.NoError(t, err)
	require.Equal(t, enums.UrgencyMedium, updated.UrgencyLevel)

	stored, err := f.svc.Get(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, "Fresh rolls", stored.Title)
	require.Equal(t, enums.UrgencyMedium, stored.UrgencyLevel)

	_, err = f.svc.Update(context.Background(), businessActor(uuid.New()), item.ID, UpdateInput{Title: &title})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	claimed := dbtest.SeedFoodItem(t, f.conn, business.ID, func(i *models.FoodItem) {
		i.Status = enums.FoodItemStatusClaimed
	})
	_, err = f.svc.Update(context.Background(), businessActor(business.ID), claimed.ID, UpdateInput{Title: &title})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	_, err = f.svc.Update(context.Background(), businessActor(business.ID), uuid.New(), UpdateInput{Title: &title})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestBulkCancelResolvesLiveMatches(t *testing.T) {
	f := newFixture(t)
	business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
	recipient := dbtest.SeedUser(t, f.conn, enums.UserRoleRecipient)
	first := dbtest.SeedFoodItem(t, f.conn, business.ID)
	second := dbtest.SeedFoodItem(t, f.conn, business.ID)
	match := dbtest.SeedMatch(t, f.conn, first, recipient.ID)

	res, err := f.svc.BulkUpdateStatus(context.Background(), businessActor(business.ID), []uuid.UUID{first.ID, second.ID, first.ID}, enums.FoodItemStatusCancelled)
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Affected)
	require.Len(t, res.IDs, 2)

	var stored models.Match
	require.NoError(t, f.conn.First(&stored, "id = ?", match.ID).Error)
	require.Equal(t, enums.MatchStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancelledAt)

	var interest models.FoodItemInterest
	require.NoError(t, f.conn.First(&interest, "match_id = ?", match.ID).Error)
	require.Equal(t, enums.MatchStatusCancelled, interest.Status)

	require.Equal(t, []enums.OutboxEventType{enums.EventMatchCancelled}, f.outboxTypes(t))
}

func TestBulkUpdateStatusIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
	available := dbtest.SeedFoodItem(t, f.conn, business.ID)
	delivered := dbtest.SeedFoodItem(t, f.conn, business.ID, func(i *models.FoodItem) {
		i.Status = enums.FoodItemStatusDelivered
	})
	foreign := dbtest.SeedFoodItem(t, f.conn, uuid.New())

	_, err := f.svc.BulkUpdateStatus(context.Background(), businessActor(business.ID), []uuid.UUID{available.ID, delivered.ID}, enums.FoodItemStatusCancelled)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	_, err = f.svc.BulkUpdateStatus(context.Background(), businessActor(business.ID), []uuid.UUID{available.ID, foreign.ID}, enums.FoodItemStatusExpired)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.BulkUpdateStatus(context.Background(), businessActor(business.ID), []uuid.UUID{available.ID}, enums.FoodItemStatusDelivered)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.BulkUpdateStatus(context.Background(), businessActor(business.ID), nil, enums.FoodItemStatusCancelled)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	stored, err := f.svc.Get(context.Background(), available.ID)
	require.NoError(t, err)
	require.Equal(t, enums.FoodItemStatusAvailable, stored.Status)
	require.Empty(t, f.outboxTypes(t))
}

func TestBulkExpireDeclinesPendingMatches(t *testing.T) {
	f := newFixture(t)
	business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
	recipient := dbtest.SeedUser(t, f.conn, enums.UserRoleRecipient)
	item := dbtest.SeedFoodItem(t, f.conn, business.ID)
	match := dbtest.SeedMatch(t, f.conn, item, recipient.ID)

	f.now = f.now.Add(-90 * time.Minute)
	_, err := f.svc.BulkUpdateStatus(context.Background(), businessActor(business.ID), []uuid.UUID{item.ID}, enums.FoodItemStatusExpired)
	require.NoError(t, err)

	var stored models.Match
	require.NoError(t, f.conn.First(&stored, "id = ?", match.ID).Error)
	require.Equal(t, enums.MatchStatusDeclined, stored.Status)
	require.WithinDuration(t, f.now, stored.UpdatedAt, time.Second)

	var expired models.FoodItem
	require.NoError(t, f.conn.First(&expired, "id = ?", item.ID).Error)
	require.WithinDuration(t, f.now, expired.UpdatedAt, time.Second)
	require.Equal(t, []enums.OutboxEventType{enums.EventFoodExpired}, f.outboxTypes(t))
}

func TestCancelClaimedItemCancelsAcceptedMatch(t *testing.T) {
	f := newFixture(t)
	business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
	recipient := dbtest.SeedUser(t, f.conn, enums.UserRoleRecipient)
	item := dbtest.SeedFoodItem(t, f.conn, business.ID, func(i *models.FoodItem) {
		i.Status = enums.FoodItemStatusClaimed
		i.AssignedRecipientID = &recipient.ID
	})
	match := dbtest.SeedMatch(t, f.conn, item, recipient.ID, func(m *models.Match) {
		m.Status = enums.MatchStatusAccepted
	})

	cancelled, err := f.svc.Cancel(context.Background(), businessActor(business.ID), item.ID)
	require.NoError(t, err)
	require.Equal(t, enums.FoodItemStatusCancelled, cancelled.Status)

	var stored models.Match
	require.NoError(t, f.conn.First(&stored, "id = ?", match.ID).Error)
	require.Equal(t, enums.MatchStatusCancelled, stored.Status)

	_, err = f.svc.Cancel(context.Background(), businessActor(business.ID), item.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}

func TestDeleteAndBulkDelete(t *testing.T) {
	f := newFixture(t)
	business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
	recipient := dbtest.SeedUser(t, f.conn, enums.UserRoleRecipient)
	first := dbtest.SeedFoodItem(t, f.conn, business.ID)
	second := dbtest.SeedFoodItem(t, f.conn, business.ID)
	third := dbtest.SeedFoodItem(t, f.conn, business.ID)
	dbtest.SeedMatch(t, f.conn, first, recipient.ID)

	err := f.svc.Delete(context.Background(), businessActor(uuid.New()), first.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	require.NoError(t, f.svc.Delete(context.Background(), businessActor(business.ID), first.ID))
	_, err = f.svc.Get(context.Background(), first.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	var matches int64
	require.NoError(t, f.conn.Model(&models.Match{}).Count(&matches).Error)
	require.Zero(t, matches)

	admin := auth.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	require.NoError(t, f.svc.Delete(context.Background(), admin, second.ID))

	res, err := f.svc.BulkDelete(context.Background(), businessActor(business.ID), []uuid.UUID{third.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Affected)
}

func TestExpireDue(t *testing.T) {
	f := newFixture(t)
	business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
	recipient := dbtest.SeedUser(t, f.conn, enums.UserRoleRecipient)
	due := dbtest.SeedFoodItem(t, f.conn, business.ID, func(i *models.FoodItem) {
		i.AvailableFrom = f.now.Add(-5 * time.Hour)
		i.ExpiresAt = f.now.Add(-time.Hour)
	})
	fresh := dbtest.SeedFoodItem(t, f.conn, business.ID)
	claimed := dbtest.SeedFoodItem(t, f.conn, business.ID, func(i *models.FoodItem) {
		i.Status = enums.FoodItemStatusClaimed
		i.AvailableFrom = f.now.Add(-5 * time.Hour)
		i.ExpiresAt = f.now.Add(-time.Hour)
	})
	match := dbtest.SeedMatch(t, f.conn, due, recipient.ID)

	n, err := f.svc.ExpireDue(context.Background(), f.now, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	for id, want := range map[uuid.UUID]enums.FoodItemStatus{
		due.ID:     enums.FoodItemStatusExpired,
		fresh.ID:   enums.FoodItemStatusAvailable,
		claimed.ID: enums.FoodItemStatusClaimed,
	} {
		item, err := f.svc.Get(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, want, item.Status)
	}

	var stored models.Match
	require.NoError(t, f.conn.First(&stored, "id = ?", match.ID).Error)
	require.Equal(t, enums.MatchStatusDeclined, stored.Status)
	require.Equal(t, []enums.OutboxEventType{enums.EventFoodExpired}, f.outboxTypes(t))

	n, err = f.svc.ExpireDue(context.Background(), f.now, 10)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestListPublicSearchMatchesWildcardsLiterally(t *testing.T) {
	f := newFixture(t)
	business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
	discounted := dbtest.SeedFoodItem(t, f.conn, business.ID, func(i *models.FoodItem) {
		i.Title = "Bagels 50% off"
	})
	dbtest.SeedFoodItem(t, f.conn, business.ID, func(i *models.FoodItem) {
		i.Title = "50 bagels"
	})
	dbtest.SeedFoodItem(t, f.conn, business.ID, func(i *models.FoodItem) {
		i.Title = "Bread rolls"
	})

	res, err := f.svc.List(context.Background(), PublicFilters{Search: "50%"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Equal(t, discounted.ID, res.Items[0].ID)

	res, err = f.svc.List(context.Background(), PublicFilters{Search: "_"})
	require.NoError(t, err)
	require.Empty(t, res.Items)
}

func TestContainsPattern(t *testing.T) {
	require.Equal(t, `%50\% off%`, containsPattern("50% off"))
	require.Equal(t, `%snake\_case%`, containsPattern("snake_case"))
	require.Equal(t, `%a\\b%`, containsPattern(`a\b`))
}

func TestListPublicAndMine(t *testing.T) {
	f := newFixture(t)
	business := dbtest.SeedUser(t, f.conn, enums.UserRoleBusiness)
	urgent := dbtest.SeedFoodItem(t, f.conn, business.ID, func(i *models.FoodItem) {
		i.Title = "Urgent soup"
		i.UrgencyLevel = enums.UrgencyHigh
		i.ExpiresAt = f.now.Add(2 * time.Hour)
	})
	dbtest.SeedFoodItem(t, f.conn, business.ID)
	dbtest.SeedFoodItem(t, f.conn, business.ID, func(i *models.FoodItem) {
		i.Title = "Stale"
		i.AvailableFrom = f.now.Add(-3 * time.Hour)
		i.ExpiresAt = f.now.Add(-time.Hour)
	})
	dbtest.SeedFoodItem(t, f.conn, business.ID, func(i *models.FoodItem) {
		i.Status = enums.FoodItemStatusCancelled
	})

	res, err := f.svc.List(context.Background(), PublicFilters{})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Page.Total)
	require.Len(t, res.Items, 2)
	require.Equal(t, urgent.ID, res.Items[0].ID)
	require.Nil(t, res.Items[0].DistanceKm)

	res, err = f.svc.List(context.Background(), PublicFilters{Search: "SOUP"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	lat := 40.0
	_, err = f.svc.List(context.Background(), PublicFilters{Lat: &lat})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	mine, err := f.svc.ListMine(context.Background(), businessActor(business.ID), MineFilters{Sort: SortExpiring})
	require.NoError(t, err)
	require.EqualValues(t, 4, mine.Page.Total)
	require.Equal(t, "Stale", mine.Items[0].Title)
	require.EqualValues(t, 3, mine.StatusCounts[enums.FoodItemStatusAvailable])
	require.EqualValues(t, 1, mine.StatusCounts[enums.FoodItemStatusCancelled])

	_, err = f.svc.ListMine(context.Background(), businessActor(business.ID), MineFilters{Sort: "cheapest"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
