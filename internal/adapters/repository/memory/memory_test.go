package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vshulcz/Clashpulse/internal/domain"
)

func backend(label string, created int64, active bool) domain.Backend {
	return domain.Backend{
		ID:        uuid.New(),
		Label:     label,
		Target:    domain.Target{Host: "127.0.0.1", Port: 9090, Scheme: domain.SchemeHTTP},
		CreatedAt: time.Unix(created, 0),
		Active:    active,
	}
}

func activeCount(t *testing.T, r *Repo) int {
	t.Helper()
	list, err := r.List(context.TODO())
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, b := range list {
		if b.Active {
			n++
		}
	}
	return n
}

func TestRepo(t *testing.T) {
	t.Run("SaveGetListOrdered", func(t *testing.T) {
		r := New()
		second := backend("second", 20, false)
		first := backend("first", 10, false)
		for _, b := range []domain.Backend{second, first} {
			if err := r.Save(context.TODO(), b); err != nil {
				t.Fatal(err)
			}
		}
		list, _ := r.List(context.TODO())
		if len(list) != 2 || list[0].Label != "first" || list[1].Label != "second" {
			t.Fatalf("list=%+v", list)
		}
		got, err := r.Get(context.TODO(), second.ID)
		if err != nil || got.Label != "second" {
			t.Fatalf("get=%+v err=%v", got, err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		r := New()
		id := uuid.New()
		if _, err := r.Get(context.TODO(), id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Get err=%v", err)
		}
		if err := r.Delete(context.TODO(), id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Delete err=%v", err)
		}
		if err := r.SetActive(context.TODO(), id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("SetActive err=%v", err)
		}
	})

	t.Run("SingleActive", func(t *testing.T) {
		r := New()
		a, b := backend("a", 1, true), backend("b", 2, false)
		_ = r.Save(context.TODO(), a)
		_ = r.Save(context.TODO(), b)

		if err := r.SetActive(context.TODO(), b.ID); err != nil {
			t.Fatal(err)
		}
		if n := activeCount(t, r); n != 1 {
			t.Fatalf("active=%d", n)
		}
		got, _ := r.Get(context.TODO(), b.ID)
		if !got.Active {
			t.Fatal("b should be active")
		}

		a.Active = true
		_ = r.Save(context.TODO(), a)
		if n := activeCount(t, r); n != 1 {
			t.Fatalf("after save active=%d", n)
		}
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		r := New()
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = r.Save(context.TODO(), backend("x", int64(i), i%2 == 0))
			}()
		}
		wg.Wait()
		list, _ := r.List(context.TODO())
		if len(list) != 50 {
			t.Fatalf("len=%d", len(list))
		}
		if n := activeCount(t, r); n != 1 {
			t.Fatalf("active=%d", n)
		}
	})

	t.Run("PingNotConfigured", func(t *testing.T) {
		if err := New().Ping(context.TODO()); err == nil {
			t.Fatal("memory ping should report no database")
		}
	})
}
