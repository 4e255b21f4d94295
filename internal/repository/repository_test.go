// Package repository provides data access layer implementations.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"rps-wager-bot/internal/model"
	"rps-wager-bot/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a migrated connection pool.
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	err = db.Migrate(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// ============================================================================
// UserRepository Tests
// ============================================================================

func TestUserRepository_Create(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	txRepo := NewTransactionRepository(pool)
	ctx := context.Background()

	user, err := repo.Create(ctx, 12345, "testuser", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), user.UserID)
	assert.Equal(t, "testuser", user.Username)
	assert.Equal(t, int64(1000), user.Balance)
	assert.False(t, user.CreatedAt.IsZero())

	txs, err := txRepo.GetByUserID(ctx, 12345, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.TxTypeInitial, txs[0].Type)
	assert.Equal(t, int64(1000), txs[0].Amount)

	// Zero starting balance writes no initial transaction.
	_, err = repo.Create(ctx, 777, "house", 0)
	require.NoError(t, err)
	txs, err = txRepo.GetByUserID(ctx, 777, 10)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestUserRepository_GetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 12345, "testuser", 1000)
	require.NoError(t, err)

	user, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), user.UserID)
	assert.Equal(t, "testuser", user.Username)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, created, err := repo.GetOrCreate(ctx, 12345, "testuser", 500)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(500), user.Balance)

	user, created, err = repo.GetOrCreate(ctx, 12345, "testuser", 500)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(12345), user.UserID)
}

func TestUserRepository_DebitCredit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	txRepo := NewTransactionRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 12345, "testuser", 100)
	require.NoError(t, err)

	user, err := repo.Debit(ctx, 12345, 40, model.TxTypeRPSStake, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(60), user.Balance)

	// A debit larger than the balance leaves it untouched.
	_, err = repo.Debit(ctx, 12345, 61, model.TxTypeRPSSideBet, nil)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	user, err = repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, int64(60), user.Balance)

	desc := "match abc"
	user, err = repo.Credit(ctx, 12345, 80, model.TxTypeRPSPayout, &desc)
	require.NoError(t, err)
	assert.Equal(t, int64(140), user.Balance)

	_, err = repo.Debit(ctx, 99999, 1, model.TxTypeRPSStake, nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.Credit(ctx, 99999, 1, model.TxTypeRPSPayout, nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.Debit(ctx, 12345, 0, model.TxTypeRPSStake, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	txs, err := txRepo.GetByUserIDAndTypes(ctx, 12345, model.RPSTransactionTypes(), 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, model.TxTypeRPSPayout, txs[0].Type)
	require.NotNil(t, txs[0].Description)
	assert.Equal(t, desc, *txs[0].Description)
	assert.Equal(t, int64(-40), txs[1].Amount)

	net, err := txRepo.NetByTypes(ctx, 12345, model.RPSTransactionTypes())
	require.NoError(t, err)
	assert.Equal(t, int64(40), net)
}

func TestUserRepository_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 1, "racer", 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Debit(ctx, 1, 1, model.TxTypeRPSSideBet, nil); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	user, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Balance)
}

func TestUserRepository_UpdateUsername(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 12345, "oldname", 0)
	require.NoError(t, err)

	err = repo.UpdateUsername(ctx, 12345, "newname")
	require.NoError(t, err)

	user, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, "newname", user.Username)

	err = repo.UpdateUsername(ctx, 99999, "name")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_Exists(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	exists, err := repo.Exists(ctx, 12345)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.Create(ctx, 12345, "testuser", 0)
	require.NoError(t, err)

	exists, err = repo.Exists(ctx, 12345)
	require.NoError(t, err)
	assert.True(t, exists)
}

// ============================================================================
// UnpaidCreditRepository Tests
// ============================================================================

func TestUnpaidCreditRepository_Lifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUnpaidCreditRepository(pool)
	ctx := context.Background()

	first, err := repo.Create(ctx, model.UnpaidCredit{
		MatchID: "m-1", UserID: 1, Amount: 20, Reason: model.TxTypeRPSPayout, LastError: "timeout",
	})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.False(t, first.Resolved())

	_, err = repo.Create(ctx, model.UnpaidCredit{
		MatchID: "m-2", UserID: 2, Amount: 5, Reason: model.TxTypeRPSRefund,
	})
	require.NoError(t, err)

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "m-1", pending[0].MatchID)

	n, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := repo.MarkResolved(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkResolved(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second resolve must not succeed")

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Resolved())

	require.NoError(t, repo.Reopen(ctx, first.ID, "still down"))
	got, err = repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.Resolved())
	assert.Equal(t, "still down", got.LastError)

	_, err = repo.GetByID(ctx, 424242)
	assert.ErrorIs(t, err, ErrUnpaidCreditNotFound)

	// Zero amounts are rejected by the schema.
	_, err = repo.Create(ctx, model.UnpaidCredit{MatchID: "m-3", UserID: 3, Amount: 0, Reason: model.TxTypeRPSPayout})
	assert.Error(t, err)
}
