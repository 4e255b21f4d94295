package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestConcurrentWalletSafetyProperty checks that concurrent read-modify-write
// wallet updates for one user end in the same balance as sequential execution.
func TestConcurrentWalletSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expected := initialBalance
		for i := range amounts {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expected += amounts[i]
		}

		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")
		ul := NewUserLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				_ = ul.WithLock(userID, func() error {
					balance += amount
					return nil
				})
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("Balance mismatch with locking: expected %d, got %d (initial=%d, numOps=%d)",
				expected, balance, initialBalance, numOps)
		}
		if ul.Len() != 0 {
			t.Fatalf("Lock entries leaked: %d", ul.Len())
		}
	})
}

// TestMultipleUsersIndependentLocksProperty checks that locks for different users
// do not interfere with each other.
func TestMultipleUsersIndependentLocksProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numUsers := rapid.IntRange(2, 10).Draw(t, "numUsers")
		opsPerUser := rapid.IntRange(5, 20).Draw(t, "opsPerUser")

		ul := NewUserLock()
		balances := make([]int64, numUsers+1)

		var wg sync.WaitGroup
		wg.Add(numUsers * opsPerUser)
		for userID := 1; userID <= numUsers; userID++ {
			for j := 0; j < opsPerUser; j++ {
				go func(uid int) {
					defer wg.Done()
					ul.Lock(int64(uid))
					defer ul.Unlock(int64(uid))
					balances[uid] += 10
				}(userID)
			}
		}
		wg.Wait()

		for userID := 1; userID <= numUsers; userID++ {
			if balances[userID] != int64(opsPerUser)*10 {
				t.Fatalf("User %d balance mismatch: expected %d, got %d",
					userID, opsPerUser*10, balances[userID])
			}
		}
	})
}

// TestTryLockExclusiveProperty checks that TryLock admits exactly one holder at a time
// and that the lock is free once every holder has released it.
func TestTryLockExclusiveProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")
		numAttempts := rapid.IntRange(5, 20).Draw(t, "numAttempts")

		ul := NewUserLock()
		var holders, maxHolders, successes atomic.Int32
		var wg sync.WaitGroup
		wg.Add(numAttempts)
		start := make(chan struct{})

		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				<-start
				if ul.TryLock(userID) {
					successes.Add(1)
					if n := holders.Add(1); n > maxHolders.Load() {
						maxHolders.Store(n)
					}
					holders.Add(-1)
					ul.Unlock(userID)
				}
			}()
		}
		close(start)
		wg.Wait()

		if successes.Load() < 1 {
			t.Fatalf("At least one TryLock should succeed, got %d", successes.Load())
		}
		if maxHolders.Load() > 1 {
			t.Fatalf("TryLock admitted %d concurrent holders", maxHolders.Load())
		}
		if !ul.TryLock(userID) {
			t.Fatal("Lock should be available after all operations complete")
		}
		ul.Unlock(userID)
		if ul.Len() != 0 {
			t.Fatalf("Lock entries leaked: %d", ul.Len())
		}
	})
}

func TestLockContext_Timeout(t *testing.T) {
	ul := NewUserLock()
	ul.Lock(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := ul.WithLockContext(ctx, 1, func() error {
		t.Fatal("fn must not run while the lock is held elsewhere")
		return nil
	})
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}

	ul.Unlock(1)

	deadline := time.Now().Add(time.Second)
	for ul.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ul.Len() != 0 {
		t.Fatalf("abandoned waiter did not release its entry")
	}

	if err := ul.WithLockContext(context.Background(), 1, func() error { return nil }); err != nil {
		t.Fatalf("expected lock to be free, got %v", err)
	}
}
