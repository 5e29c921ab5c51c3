// Command outbox-dlq inspects dead-lettered outbox events and hands them back
// to the publisher once the cause is fixed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/surplus-engine/pkg/config"
	"github.com/angelmondragon/surplus-engine/pkg/db"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/outbox"
)

type dlqStore interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

type options struct {
	eventType string
	reason    string
	limit     int
	events    []string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-dlq"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "list", "list|requeue; requeue takes event ids as arguments")
	eventType := flag.String("type", "", "filter by event type (list)")
	reason := flag.String("reason", "", "filter by error reason: max_attempts|non_retryable (list)")
	limit := flag.Int("limit", 50, "max rows (list)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	ctx := context.Background()
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	opts := options{eventType: *eventType, reason: *reason, limit: *limit, events: flag.Args()}
	if err := run(ctx, *cmd, outbox.NewDLQRepository(dbClient.DB()), opts, os.Stdout); err != nil {
		logg.Error(logg.WithField(ctx, "cmd", *cmd), "outbox-dlq failed", err)
		dbClient.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, store dlqStore, opts options, out io.Writer) error {
	switch cmd {
	case "list":
		reason, err := enums.ParseOutboxDLQErrorReason(opts.reason)
		if err != nil {
			return err
		}
		filter := outbox.DLQFilter{
			EventType: enums.OutboxEventType(opts.eventType),
			Reason:    reason,
			Limit:     opts.limit,
		}
		rows, err := store.List(ctx, filter)
		if err != nil {
			return err
		}
		return printEntries(out, rows)
	case "requeue":
		if len(opts.events) == 0 {
			return errors.New("requeue needs one or more event ids as arguments")
		}
		var errs error
		for _, raw := range opts.events {
			id, err := uuid.Parse(raw)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("event %q: %w", raw, err))
				continue
			}
			if err := store.Requeue(ctx, id); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("event %s: %w", id, err))
				continue
			}
			fmt.Fprintln(out, "requeued", id)
		}
		return errs
	default:
		return fmt.Errorf("unknown -cmd value %q", cmd)
	}
}

func printEntries(out io.Writer, rows []models.OutboxDLQ) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT_ID\tTYPE\tREASON\tATTEMPTS\tFAILED_AT\tERROR")
	for _, row := range rows {
		msg := ""
		if row.ErrorMessage != nil {
			msg = *row.ErrorMessage
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			row.EventID, row.EventType, row.ErrorReason, row.AttemptCount,
			row.FailedAt.UTC().Format(time.RFC3339), msg)
	}
	return w.Flush()
}
