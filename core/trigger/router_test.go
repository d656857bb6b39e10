package trigger

import (
	"context"
	"errors"
	"testing"

	"StudioLink/queue"
)

func TestRouterDispatchesByCollection(t *testing.T) {
	r := NewRouter()
	var handled []string
	r.Register(queue.CollectionBookings, func(_ context.Context, ev queue.ChangeEvent) error {
		handled = append(handled, ev.DocumentID)
		return nil
	})

	ev := mustEvent(t, queue.CollectionBookings, "bk-1", nil, map[string]interface{}{"id": "bk-1"})
	if err := r.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(handled) != 1 || handled[0] != "bk-1" {
		t.Errorf("handled = %v, want [bk-1]", handled)
	}
}

func TestRouterIgnoresUnknownCollection(t *testing.T) {
	r := NewRouter()
	ev := mustEvent(t, "audit_log", "x", nil, map[string]interface{}{"id": "x"})
	// 没有注册处理器的集合直接确认，不能把消息顶回队列
	if err := r.Handle(context.Background(), ev); err != nil {
		t.Fatalf("unknown collection should be acked, got: %v", err)
	}
}

func TestRouterPropagatesHandlerError(t *testing.T) {
	r := NewRouter()
	wantErr := errors.New("store down")
	r.Register(queue.CollectionBookings, func(context.Context, queue.ChangeEvent) error {
		return wantErr
	})

	ev := mustEvent(t, queue.CollectionBookings, "bk-1", nil, map[string]interface{}{"id": "bk-1"})
	if err := r.Handle(context.Background(), ev); !errors.Is(err, wantErr) {
		t.Errorf("Handle error = %v, want %v", err, wantErr)
	}
}
