package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	pool, err := conn.DB()
	require.NoError(t, err)
	pool.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func countRows(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(&testModel{}).Count(&count).Error)
	return count
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	conn := newTestDB(t)
	client := Wrap(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}))
	assert.EqualValues(t, 1, countRows(t, conn))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	assert.EqualValues(t, 1, countRows(t, conn))
}

func TestWithTxReplaysSerializationFailures(t *testing.T) {
	client := &Client{conn: newTestDB(t), retries: 2}

	attempts := 0
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("claim row: %w", &pgconn.PgError{Code: "40001"})
		}
		return tx.Create(&testModel{Name: "third time"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithTxGivesUpAfterRetries(t *testing.T) {
	client := &Client{conn: newTestDB(t), retries: 1}

	attempts := 0
	err := client.WithTx(context.Background(), func(*gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.Error(t, err)
	assert.True(t, IsRetryableTx(err))
	assert.Equal(t, 2, attempts)
}

func TestWithTxDoesNotReplayOtherErrors(t *testing.T) {
	client := &Client{conn: newTestDB(t), retries: 3}

	attempts := 0
	err := client.WithTx(context.Background(), func(*gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "23505"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryableTx(t *testing.T) {
	assert.True(t, IsRetryableTx(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryableTx(fmt.Errorf("wrap: %w", &pq.Error{Code: "40P01"})))
	assert.False(t, IsRetryableTx(&pq.Error{Code: "23505"}))
	assert.False(t, IsRetryableTx(errors.New("serialization failure")))
	assert.False(t, IsRetryableTx(nil))
}

func TestPing(t *testing.T) {
	require.NoError(t, Wrap(newTestDB(t)).Ping(context.Background()))
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_matches_pending_food_recipient"}
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "ux_matches_pending_food_recipient"))
	assert.False(t, IsUniqueViolation(pgErr, "ux_matches_accepted_food"))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: matches.food_item_id"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestIsCheckViolation(t *testing.T) {
	assert.True(t, IsCheckViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23514"})))
	assert.True(t, IsCheckViolation(&pq.Error{Code: "23514"}))
	assert.True(t, IsCheckViolation(errors.New("CHECK constraint failed: message")))
	assert.False(t, IsCheckViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsCheckViolation(nil))
}

func TestGormLoggerReportsSlowAndFailedStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf, Format: "json"})
	gl := newGormLogger(logg, 50*time.Millisecond)
	ctx := context.Background()
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	gl.Trace(ctx, time.Now(), stmt, nil)
	assert.Empty(t, buf.String())

	gl.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	gl.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Contains(t, buf.String(), "slow sql statement")
	assert.Contains(t, buf.String(), `"sql":"SELECT 1"`)

	buf.Reset()
	gl.Trace(ctx, time.Now(), stmt, errors.New("relation does not exist"))
	assert.Contains(t, buf.String(), "sql statement failed")
	assert.Contains(t, buf.String(), "relation does not exist")
}
