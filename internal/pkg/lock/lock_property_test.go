// Package lock provides per-user in-process locking.
// Property-based tests for the duplicate-submission guard.
package lock

import (
	"sync"
	"testing"

	"pgregory.net/rapid"
)

// TestDuplicateSubmissionGuardProperty tests the TryLock guard.
// For any number of simultaneous submissions from the same user,
// exactly one SHALL acquire the lock and the rest SHALL be turned away.
func TestDuplicateSubmissionGuardProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numSubmissions := rapid.IntRange(2, 50).Draw(t, "numSubmissions")
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")

		ul := NewUserLock()

		var wg sync.WaitGroup
		start := make(chan struct{})
		acquired := make(chan struct{}, numSubmissions)

		wg.Add(numSubmissions)
		for i := 0; i < numSubmissions; i++ {
			go func() {
				defer wg.Done()
				<-start
				if ul.TryLock(userID) {
					acquired <- struct{}{}
				}
			}()
		}

		close(start)
		wg.Wait()
		close(acquired)

		winners := 0
		for range acquired {
			winners++
		}
		if winners != 1 {
			t.Fatalf("expected exactly 1 winner out of %d submissions, got %d", numSubmissions, winners)
		}

		// Once released, the next submission goes through again
		ul.Unlock(userID)
		if !ul.TryLock(userID) {
			t.Fatal("lock should be available after release")
		}
		ul.Unlock(userID)
	})
}

// TestIdleEntriesEvictedProperty tests that the lock table does not grow
// without bound: once a user has no holder and no waiters, their entry is
// removed, and an entry exists only while the lock is in use.
func TestIdleEntriesEvictedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numUsers := rapid.IntRange(1, 20).Draw(t, "numUsers")
		ul := NewUserLock()

		for i := 0; i < numUsers; i++ {
			userID := int64(i + 1)

			ul.Lock(userID)
			if ul.size() != 1 {
				t.Fatalf("expected 1 live entry while user %d holds the lock, got %d", userID, ul.size())
			}
			ul.Unlock(userID)
			if ul.size() != 0 {
				t.Fatalf("expected 0 live entries after user %d released, got %d", userID, ul.size())
			}

			// A failed TryLock must not leak an entry either
			ul.Lock(userID)
			if ul.TryLock(userID) {
				t.Fatal("TryLock should fail while the lock is held")
			}
			if ul.size() != 1 {
				t.Fatalf("expected 1 live entry after failed TryLock, got %d", ul.size())
			}
			ul.Unlock(userID)
			if ul.size() != 0 {
				t.Fatalf("expected 0 live entries after release, got %d", ul.size())
			}
		}
	})
}

// TestIdleEntriesEvictedUnderContention drives concurrent WithLock calls
// and checks the table is empty once they all finish.
func TestIdleEntriesEvictedUnderContention(t *testing.T) {
	ul := NewUserLock()

	var wg sync.WaitGroup
	for user := int64(1); user <= 8; user++ {
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_ = ul.WithLock(id, func() error { return nil })
			}(user)
		}
	}
	wg.Wait()

	if ul.size() != 0 {
		t.Fatalf("expected all entries evicted after contention, got %d", ul.size())
	}
}

// TestPerUserIsolationProperty tests that locks are per-user: holding one
// user's lock never blocks another user's submission.
func TestPerUserIsolationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		userA := rapid.Int64Range(1, 1000000).Draw(t, "userA")
		userB := rapid.Int64Range(1000001, 2000000).Draw(t, "userB")

		ul := NewUserLock()

		if !ul.TryLock(userA) {
			t.Fatal("fresh lock should be acquirable")
		}
		if !ul.TryLock(userB) {
			t.Fatalf("user %d's lock should not block user %d", userA, userB)
		}
		ul.Unlock(userA)
		ul.Unlock(userB)
	})
}

// TestWithLockSerializesSameUser tests that WithLock serializes critical
// sections for the same user: a read-modify-write counter under WithLock
// always lands on the expected total.
func TestWithLockSerializesSameUser(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(2, 30).Draw(t, "numOps")
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")

		ul := NewUserLock()
		counter := 0

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = ul.WithLock(userID, func() error {
					counter++
					return nil
				})
			}()
		}
		wg.Wait()

		if counter != numOps {
			t.Fatalf("expected counter %d, got %d", numOps, counter)
		}
	})
}
