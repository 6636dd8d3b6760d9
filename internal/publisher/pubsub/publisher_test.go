package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

func TestPublishToEmulator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	admin, err := pubsub.NewClient(ctx, "proj", option.WithGRPCConn(conn))
	require.NoError(t, err)
	_, err = admin.CreateTopic(ctx, "freebies")
	require.NoError(t, err)

	pub, err := New(ctx, Config{ProjectID: "proj", Topic: "freebies"}, nil, option.WithGRPCConn(conn))
	require.NoError(t, err)

	event := catalog.Event{
		Type:       catalog.EventListingNew,
		RunID:      "run-1",
		OccurredAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Listing:    &catalog.Listing{ID: "42", Title: "Game"},
	}
	id, err := pub.Publish(ctx, "", event)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, catalog.EventListingNew, msgs[0].Attributes["event_type"])

	var got catalog.Event
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	require.Equal(t, "42", got.Listing.ID)
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Topic: "t"}, nil)
	require.Error(t, err)
	_, err = New(context.Background(), Config{ProjectID: "p"}, nil)
	require.Error(t, err)
}
