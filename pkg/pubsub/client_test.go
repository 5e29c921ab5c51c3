package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/surplus-engine/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		name    string
		project string
		kind    resourceKind
		id      string
		want    string
	}{
		{"short topic", "proj", kindTopic, "events", "projects/proj/topics/events"},
		{"full topic passes through", "proj", kindTopic, "projects/other/topics/x", "projects/other/topics/x"},
		{"trimmed subscription", "proj", kindSubscription, " inbox ", "projects/proj/subscriptions/inbox"},
		{"empty id", "proj", kindTopic, "", ""},
		{"missing project", "", kindTopic, "events", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resourceName(tc.project, tc.kind, tc.id))
		})
	}
}

func TestNilClientIsInert(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("events"))
	assert.Nil(t, c.NotificationSubscription())
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, c.Close())
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{NotificationSubscription: "inbox"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "proj"}, config.PubSubConfig{NotificationSubscription: " "}, nil)
	require.ErrorIs(t, err, errSubscriptionRequired)
}
