package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestStore(t *testing.T) *RedisStore {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create presence store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHeartbeatThenGoodbye(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.MarkOnline(ctx, "show-1", "mem-1", "device-a"); err != nil {
		t.Fatalf("MarkOnline failed: %v", err)
	}
	first, err := store.Get(ctx, "show-1", "mem-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !first.Online {
		t.Fatal("expected member online after heartbeat")
	}
	if first.DeviceID != "device-a" {
		t.Fatalf("device id = %q, want device-a", first.DeviceID)
	}

	if err := store.MarkOffline(ctx, "show-1", "mem-1"); err != nil {
		t.Fatalf("MarkOffline failed: %v", err)
	}
	second, err := store.Get(ctx, "show-1", "mem-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if second.Online {
		t.Fatal("expected member offline after goodbye")
	}
	if second.LastSeenAt.Before(first.LastSeenAt) {
		t.Fatalf("offline timestamp %v precedes online timestamp %v", second.LastSeenAt, first.LastSeenAt)
	}
}

func TestRepeatedHeartbeatsAdvanceTimestamp(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.MarkOnline(ctx, "show-1", "mem-1", "device-a"); err != nil {
		t.Fatalf("MarkOnline failed: %v", err)
	}
	first, _ := store.Get(ctx, "show-1", "mem-1")

	if err := store.MarkOnline(ctx, "show-1", "mem-1", "device-b"); err != nil {
		t.Fatalf("second MarkOnline failed: %v", err)
	}
	second, _ := store.Get(ctx, "show-1", "mem-1")

	if second.LastSeenAt.Before(first.LastSeenAt) {
		t.Fatal("heartbeat moved lastSeenAt backwards")
	}
	// Same participant on a new device: last writer wins, no arbitration.
	if second.DeviceID != "device-b" {
		t.Fatalf("device id = %q, want device-b", second.DeviceID)
	}
}

func TestGetUnknownMemberReadsOffline(t *testing.T) {
	store := setupTestStore(t)

	status, err := store.Get(context.Background(), "show-1", "ghost")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if status.Online {
		t.Fatal("unknown member should read as offline")
	}
	if !status.LastSeenAt.IsZero() {
		t.Fatal("unknown member should have zero lastSeenAt")
	}
}

func TestListScopesByShow(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_ = store.MarkOnline(ctx, "show-1", "mem-1", "d1")
	_ = store.MarkOnline(ctx, "show-1", "mem-2", "d2")
	_ = store.MarkOnline(ctx, "show-2", "mem-3", "d3")
	_ = store.MarkOffline(ctx, "show-1", "mem-2")

	listed, err := store.List(ctx, "show-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 members for show-1, got %d", len(listed))
	}
	if !listed["mem-1"].Online {
		t.Error("mem-1 should be online")
	}
	if listed["mem-2"].Online {
		t.Error("mem-2 should be offline")
	}
	if _, ok := listed["mem-3"]; ok {
		t.Error("mem-3 belongs to show-2 and should not be listed")
	}
}

func TestStale(t *testing.T) {
	now := time.Now()
	fresh := Status{Online: true, LastSeenAt: now.Add(-10 * time.Second)}
	stale := Status{Online: true, LastSeenAt: now.Add(-5 * time.Minute)}
	offline := Status{Online: false, LastSeenAt: now.Add(-5 * time.Minute)}

	if fresh.Stale(now, time.Minute) {
		t.Error("fresh heartbeat judged stale")
	}
	if !stale.Stale(now, time.Minute) {
		t.Error("old heartbeat not judged stale")
	}
	if offline.Stale(now, time.Minute) {
		t.Error("offline member cannot be stale")
	}
}
