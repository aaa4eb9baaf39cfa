package observer_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vshulcz/Clashpulse/pkg/observer"
)

type testEvent struct {
	ID string
}

func TestSubject_Publish_NotifiesAllInOrder(t *testing.T) {
	subj := observer.NewSubject[testEvent]()
	var mu sync.Mutex
	var called []string

	for _, name := range []string{"a", "b"} {
		name := name
		subj.Attach(observer.ObserverFunc[testEvent](func(_ context.Context, evt testEvent) error {
			mu.Lock()
			defer mu.Unlock()
			called = append(called, name+":"+evt.ID)
			return nil
		}))
	}

	subj.Publish(context.Background(), testEvent{ID: "traffic"})

	mu.Lock()
	defer mu.Unlock()
	if len(called) != 2 || called[0] != "a:traffic" || called[1] != "b:traffic" {
		t.Fatalf("unexpected calls: %v", called)
	}
}

func TestSubject_ErrorHandler(t *testing.T) {
	subj := observer.NewSubject[testEvent]()
	var mu sync.Mutex
	var errs []error

	subj.SetErrorHandler(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	})

	subj.Attach(observer.ObserverFunc[testEvent](func(_ context.Context, _ testEvent) error {
		return errors.New("boom")
	}))

	subj.Publish(context.Background(), testEvent{})

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 || errs[0].Error() != "boom" {
		t.Fatalf("expected error handler to capture boom, got %+v", errs)
	}
}

func TestSubject_SubscribeCancel(t *testing.T) {
	subj := observer.NewSubject[testEvent]()
	n := 0
	cancel := subj.Subscribe(observer.ObserverFunc[testEvent](func(context.Context, testEvent) error {
		n++
		return nil
	}))
	subj.Attach(nil)
	if subj.Len() != 1 {
		t.Fatalf("Len=%d want 1", subj.Len())
	}

	subj.Publish(context.Background(), testEvent{})
	cancel()
	cancel()
	subj.Publish(context.Background(), testEvent{})

	if n != 1 {
		t.Fatalf("calls=%d want 1", n)
	}
	if subj.Len() != 0 {
		t.Fatalf("Len=%d want 0", subj.Len())
	}
}

func TestSubject_NilSafe(t *testing.T) {
	var subj *observer.Subject[testEvent]
	subj.Publish(context.Background(), testEvent{})
	subj.Attach(observer.ObserverFunc[testEvent](nil))
	subj.Subscribe(nil)()
	if subj.Len() != 0 {
		t.Fatal("nil subject must be empty")
	}
}
