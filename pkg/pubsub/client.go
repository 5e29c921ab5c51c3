// Package pubsub wraps the Pub/Sub v2 client with the engine's topic and
// subscription naming. Short IDs are expanded against the configured project;
// full resource names pass through untouched.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/surplus-engine/pkg/config"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
)

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errSubscriptionRequired = errors.New("pubsub notification subscription is required")
	errNotInitialized       = errors.New("pubsub client not initialized")
)

type Client struct {
	client  *pubsub.Client
	project string
	cfg     config.PubSubConfig
}

// NewClient dials Pub/Sub and fails fast when the notification subscription
// is missing, so workers never start against a half provisioned project.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.NotificationSubscription) == "" {
		return nil, errSubscriptionRequired
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	raw, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: raw, project: project, cfg: cfg}
	if err := c.checkSubscription(ctx, cfg.NotificationSubscription); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project":      project,
			"events_topic": c.name(kindTopic, cfg.EventsTopic),
			"subscription": c.name(kindSubscription, cfg.NotificationSubscription),
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) checkSubscription(ctx context.Context, id string) error {
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
		Subscription: c.name(kindSubscription, id),
	})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("subscription %q does not exist", id)
	default:
		return fmt.Errorf("checking subscription %q: %w", id, err)
	}
}

// Subscription returns a subscriber handle, or nil when the client or name is
// unusable.
func (c *Client) Subscription(id string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.name(kindSubscription, id)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.NotificationSubscription)
}

// Publisher returns a publisher handle for a topic. Handles batch internally;
// callers should reuse them per topic.
func (c *Client) Publisher(id string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.name(kindTopic, id)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

// Ping confirms the notification subscription is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.checkSubscription(ctx, c.cfg.NotificationSubscription)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) name(kind resourceKind, id string) string {
	if c == nil {
		return ""
	}
	return resourceName(c.project, kind, id)
}

func resourceName(project string, kind resourceKind, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+string(kind)+"/") {
		return id
	}
	if project == "" {
		return ""
	}
	return "projects/" + project + "/" + string(kind) + "/" + id
}
