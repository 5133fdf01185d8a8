package cache

import (
	"context"
	"testing"
	"time"
)

func TestInProcessStore_GetSetRoundTrip(t *testing.T) {
	s := NewInProcessStore()
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL() error = %v", err)
	}
	v, ok, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if string(v) != "v1" {
		t.Errorf("Get() value = %q, want v1", v)
	}
}

func TestInProcessStore_GetMissing(t *testing.T) {
	s := NewInProcessStore()
	_, ok, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for missing key")
	}
}

func TestInProcessStore_Expiry(t *testing.T) {
	s := NewInProcessStore()
	ctx := context.Background()
	if err := s.SetWithTTL(ctx, "k1", []byte("v1"), -time.Second); err != nil {
		t.Fatalf("SetWithTTL() error = %v", err)
	}
	_, ok, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for an already-expired entry")
	}
}

func TestInProcessStore_Del(t *testing.T) {
	s := NewInProcessStore()
	ctx := context.Background()
	_ = s.SetWithTTL(ctx, "k1", []byte("v1"), time.Minute)
	if err := s.Del(ctx, "k1"); err != nil {
		t.Fatalf("Del() error = %v", err)
	}
	_, ok, _ := s.Get(ctx, "k1")
	if ok {
		t.Error("Get() ok = true after Del, want false")
	}
}

func TestInProcessStore_AcquireLock_MutualExclusion(t *testing.T) {
	s := NewInProcessStore()
	ctx := context.Background()

	ok1, err := s.AcquireLock(ctx, "lock1", "owner-a", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if !ok1 {
		t.Fatal("AcquireLock() = false, want true for first acquirer")
	}

	ok2, err := s.AcquireLock(ctx, "lock1", "owner-b", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if ok2 {
		t.Error("AcquireLock() = true, want false while owner-a still holds the lock")
	}
}

func TestInProcessStore_AcquireLock_ExpiredLockIsReacquirable(t *testing.T) {
	s := NewInProcessStore()
	ctx := context.Background()

	ok1, err := s.AcquireLock(ctx, "lock1", "owner-a", -time.Second)
	if err != nil || !ok1 {
		t.Fatalf("AcquireLock() = %v, %v", ok1, err)
	}

	ok2, err := s.AcquireLock(ctx, "lock1", "owner-b", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if !ok2 {
		t.Error("AcquireLock() = false, want true once the prior lock has expired")
	}
}

func TestInProcessStore_ReleaseLock_OnlyOwnerCanRelease(t *testing.T) {
	s := NewInProcessStore()
	ctx := context.Background()

	if _, err := s.AcquireLock(ctx, "lock1", "owner-a", time.Minute); err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}

	// owner-b's release must be a no-op.
	if err := s.ReleaseLock(ctx, "lock1", "owner-b"); err != nil {
		t.Fatalf("ReleaseLock() error = %v", err)
	}
	ok, err := s.AcquireLock(ctx, "lock1", "owner-c", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if ok {
		t.Error("AcquireLock() = true after a non-owner's release, want the original lock still held")
	}

	if err := s.ReleaseLock(ctx, "lock1", "owner-a"); err != nil {
		t.Fatalf("ReleaseLock() error = %v", err)
	}
	ok, err = s.AcquireLock(ctx, "lock1", "owner-c", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if !ok {
		t.Error("AcquireLock() = false after the owner released, want true")
	}
}
