// Package dbtest opens throwaway sqlite databases carrying the engine schema.
// Postgres specific types are stored as text; geography predicates are not
// available, so radius queries are exercised against postgres only.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/surplus-engine/pkg/db"
)

var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		phone TEXT,
		business_name TEXT,
		business_type TEXT,
		organization_type TEXT,
		serving_capacity INTEGER,
		dietary_restrictions TEXT,
		vehicle_type TEXT,
		vehicle_plate TEXT,
		address TEXT,
		location TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE food_items (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		quantity_value REAL NOT NULL CHECK (quantity_value > 0),
		quantity_unit TEXT NOT NULL,
		estimated_value NUMERIC NOT NULL DEFAULT 0 CHECK (estimated_value >= 0),
		dietary_info TEXT,
		allergens TEXT,
		tags TEXT,
		preparation_date DATETIME,
		storage_instructions TEXT,
		pickup_instructions TEXT,
		contact_phone TEXT,
		contact_email TEXT,
		address TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL,
		available_from DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		urgency_level TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'available',
		assigned_recipient_id TEXT,
		assigned_driver_id TEXT,
		assigned_at DATETIME,
		pickup_time DATETIME,
		delivery_time DATETIME,
		delivery_proof TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE food_item_interests (
		id TEXT PRIMARY KEY,
		food_item_id TEXT NOT NULL REFERENCES food_items (id) ON DELETE CASCADE,
		recipient_id TEXT NOT NULL,
		match_id TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE matches (
		id TEXT PRIMARY KEY,
		food_item_id TEXT NOT NULL REFERENCES food_items (id) ON DELETE CASCADE,
		business_id TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		driver_id TEXT,
		score_overall REAL NOT NULL,
		score_distance REAL NOT NULL,
		score_urgency REAL NOT NULL,
		score_capacity REAL NOT NULL,
		score_preference REAL NOT NULL,
		score_source TEXT NOT NULL,
		impact_meals_provided INTEGER NOT NULL DEFAULT 0,
		impact_people_served INTEGER NOT NULL DEFAULT 0,
		impact_co2_saved REAL NOT NULL DEFAULT 0,
		impact_money_saved NUMERIC NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		message TEXT CHECK (message IS NULL OR length(message) <= 300),
		matched_at DATETIME NOT NULL,
		accepted_at DATETIME,
		pickup_at DATETIME,
		delivered_at DATETIME,
		cancelled_at DATETIME,
		feedback TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_matches_pending_food_recipient ON matches (food_item_id, recipient_id) WHERE status = 'pending'`,
	`CREATE UNIQUE INDEX ux_matches_accepted_food ON matches (food_item_id) WHERE status IN ('accepted', 'completed')`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		event_id TEXT,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		link TEXT,
		read_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_notifications_event_user ON notifications (event_id, user_id) WHERE event_id IS NOT NULL`,
}

// Open returns a private in-memory database with the schema applied. A single
// connection is used so concurrent transactions serialize like row locks would.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}

// Client wraps Open in the shared db client so services get a real tx runner.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.Wrap(Open(t))
}
