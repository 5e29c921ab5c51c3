package notifications

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/outbox"
	"github.com/angelmondragon/surplus-engine/pkg/outbox/idempotency"
	"github.com/angelmondragon/surplus-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/surplus-engine/pkg/outbox/registry"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

const (
	inboxConsumer = "inbox-notifications"

	nearbyRadiusMeters = 10000
	nearbyLimit        = 50
)

type inboxWriter interface {
	CreateMany(ctx context.Context, notifications []models.Notification) (int64, error)
}

type nearbyRecipients interface {
	RecipientsWithin(ctx context.Context, center types.GeographyPoint, radiusMeters float64, limit int) ([]models.User, error)
}

type ConsumerParams struct {
	Repo         inboxWriter
	Nearby       nearbyRecipients
	Subscription *pubsub.Subscriber
	Idempotency  *idempotency.Manager
	Decoders     *registry.DecoderRegistry
	Logger       *logger.Logger
}

// Consumer turns lifecycle events from the domain topic into inbox entries.
type Consumer struct {
	repo         inboxWriter
	nearby       nearbyRecipients
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Nearby == nil {
		return nil, fmt.Errorf("nearby recipient index required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := params.Decoders
	if decoders == nil {
		decoders = registry.NewLifecycleDecoders()
	}
	return &Consumer{
		repo:         params.Repo,
		nearby:       params.Nearby,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		decoders:     decoders,
		logg:         params.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("domain subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	rawType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": rawType,
	})

	eventType, err := enums.ParseOutboxEventType(rawType)
	if err != nil {
		c.logg.Info(logCtx, "skipping unknown event")
		return processResult{ack: true}
	}

	envelope, eventID, err := outbox.ParseEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "dropping malformed envelope", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	claim, duplicate, err := c.idempotency.Begin(ctx, inboxConsumer, eventID)
	switch {
	case errors.Is(err, idempotency.ErrInFlight):
		c.logg.Info(logCtx, "event in flight on another worker")
		return processResult{nack: true}
	case err != nil:
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	case duplicate:
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}
	fail := func(msg string, err error) processResult {
		c.logg.Error(logCtx, msg, err)
		if abortErr := claim.Abort(ctx); abortErr != nil {
			c.logg.Warn(c.logg.WithField(logCtx, "error", abortErr.Error()), "idempotency claim not released")
		}
		return processResult{nack: true}
	}

	payload, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		return fail("failed to parse payload", err)
	}

	rows, err := c.build(ctx, payload)
	if err != nil {
		return fail("failed to resolve recipients", err)
	}
	for i := range rows {
		rows[i].EventID = &eventID
	}

	created, err := c.repo.CreateMany(ctx, rows)
	if err != nil {
		return fail("notification handling failed", err)
	}
	if err := claim.Commit(ctx); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "idempotency commit failed")
	}
	c.logg.Info(c.logg.WithField(logCtx, "created", created), "notifications written")
	return processResult{ack: true}
}

func (c *Consumer) build(ctx context.Context, payload any) ([]models.Notification, error) {
	switch p := payload.(type) {
	case *payloads.FoodPostedEvent:
		return c.foodPosted(ctx, p)
	case *payloads.FoodExpiredEvent:
		return []models.Notification{
			notify(p.BusinessID, enums.NotificationTypeFoodExpired, "Listing expired",
				fmt.Sprintf("%s expired before it was claimed.", p.Title), foodLink(p.FoodItemID)),
		}, nil
	case *payloads.MatchCreatedEvent:
		if p.Proposed {
			return []models.Notification{
				notify(p.RecipientID, enums.NotificationTypeMatchProposed, "Suggested match",
					fmt.Sprintf("%s looks like a good fit for you.", p.Title), matchLink(p.MatchID)),
			}, nil
		}
		return []models.Notification{
			notify(p.BusinessID, enums.NotificationTypeMatchRequested, "New request",
				fmt.Sprintf("A recipient requested %s.", p.Title), matchLink(p.MatchID)),
		}, nil
	case *payloads.MatchAcceptedEvent:
		return []models.Notification{
			notify(p.BusinessID, enums.NotificationTypeMatchAccepted, "Food claimed",
				fmt.Sprintf("%s was claimed.", p.Title), matchLink(p.MatchID)),
		}, nil
	case *payloads.MatchCompletedEvent:
		message := fmt.Sprintf("%s was delivered.", p.Title)
		return []models.Notification{
			notify(p.BusinessID, enums.NotificationTypeMatchCompleted, "Delivery complete", message, matchLink(p.MatchID)),
			notify(p.RecipientID, enums.NotificationTypeMatchCompleted, "Delivery complete", message, matchLink(p.MatchID)),
		}, nil
	case *payloads.MatchCancelledEvent:
		var out []models.Notification
		for _, userID := range []uuid.UUID{p.BusinessID, p.RecipientID} {
			if userID == p.CancelledBy {
				continue
			}
			out = append(out, notify(userID, enums.NotificationTypeMatchCancelled, "Match cancelled",
				"A match you were part of was cancelled.", matchLink(p.MatchID)))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported payload %T", payload)
	}
}

func (c *Consumer) foodPosted(ctx context.Context, p *payloads.FoodPostedEvent) ([]models.Notification, error) {
	center := types.GeographyPoint{Lat: p.Lat, Lng: p.Lng}
	recipients, err := c.nearby.RecipientsWithin(ctx, center, nearbyRadiusMeters, nearbyLimit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(recipients))
	for _, r := range recipients {
		if !r.IsActive {
			continue
		}
		out = append(out, notify(r.ID, enums.NotificationTypeFoodNearby, "New food available nearby",
			fmt.Sprintf("%s is available near you.", p.Title), foodLink(p.FoodItemID)))
	}
	return out, nil
}

func notify(userID uuid.UUID, kind enums.NotificationType, title, message, link string) models.Notification {
	return models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    &link,
	}
}

func foodLink(id uuid.UUID) string  { return "/food/" + id.String() }
func matchLink(id uuid.UUID) string { return "/matches/" + id.String() }
