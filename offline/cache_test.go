package offline

import (
	"testing"
	"time"

	"rescuehub/models"
)

func TestCacheExpiresAfterTwelveHours(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := NewCache[models.RescueTask](NewMemoryStore(), "tasks")
	c.now = func() time.Time { return now }

	c.Put([]models.RescueTask{{ID: 1, Title: "Feed colony"}, {ID: 2, Title: "Vet run"}})
	got, ok := c.Get()
	if !ok || len(got) != 2 || got[1].Title != "Vet run" {
		t.Fatalf("expected cached list, got %v %v", got, ok)
	}

	now = now.Add(CacheMaxAge)
	if _, ok := c.Get(); !ok {
		t.Fatalf("expected snapshot to be readable at exactly the max age")
	}

	now = now.Add(time.Second)
	if _, ok := c.Get(); ok {
		t.Fatalf("expected snapshot to expire after 12h+1s")
	}
	if age, ok := c.Age(); !ok || age != CacheMaxAge+time.Second {
		t.Fatalf("unexpected age %s", age)
	}
}

func TestCacheMissAndCorruption(t *testing.T) {
	store := NewMemoryStore()
	c := NewCache[models.RescueTask](store, "tasks.open")
	if _, ok := c.Get(); ok {
		t.Fatalf("expected miss on empty store")
	}
	_ = store.Set(cacheKeyPrefix+"tasks.open", []byte("garbage"))
	if _, ok := c.Get(); ok {
		t.Fatalf("expected miss on corrupt snapshot")
	}
}

func TestCacheCollectionsAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	all := NewCache[models.RescueTask](store, "tasks")
	open := NewCache[models.RescueTask](store, "tasks.open")
	all.Put([]models.RescueTask{{ID: 1}})
	if _, ok := open.Get(); ok {
		t.Fatalf("expected open collection to be empty")
	}
}
