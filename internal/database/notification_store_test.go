package database

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/victorivanov/huddle/internal/models"
)

func TestNotificationStore_RecentOrderAndBound(t *testing.T) {
	store := NewNotificationStore()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		n := models.NewNotification(models.ChannelRef(1), fmt.Sprintf("n%d", i))
		if err := store.Prepend(ctx, 7, n); err != nil {
			t.Fatalf("Prepend: %v", err)
		}
	}

	got, err := store.Recent(ctx, 7, 20)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("len = %d, want 20", len(got))
	}
	for i, n := range got {
		want := fmt.Sprintf("n%d", 24-i)
		if n.Text != want {
			t.Fatalf("got[%d] = %q, want %q", i, n.Text, want)
		}
	}

	if c, _ := store.Count(ctx, 7); c != 25 {
		t.Errorf("Count = %d, storage should keep all 25", c)
	}
}

func TestNotificationStore_EmptyFeed(t *testing.T) {
	store := NewNotificationStore()
	got, err := store.Recent(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestNotificationStore_ConcurrentReceivers(t *testing.T) {
	store := NewNotificationStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for user := int64(1); user <= 10; user++ {
		for i := 0; i < 30; i++ {
			wg.Add(1)
			go func(u int64) {
				defer wg.Done()
				_ = store.Prepend(ctx, u, models.NewNotification(models.DirectRef(2), "x"))
			}(user)
		}
	}
	wg.Wait()

	for user := int64(1); user <= 10; user++ {
		if c, _ := store.Count(ctx, user); c != 30 {
			t.Errorf("user %d count = %d, want 30", user, c)
		}
	}
}
