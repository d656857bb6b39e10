package trigger

import (
	"context"
	"strings"
	"testing"

	"StudioLink/model"
	"StudioLink/queue"
)

func newChatFixture() (*ChatFanout, *fakeAlerts) {
	threads := &fakeThreads{threads: map[string]*model.ChatThread{
		"th-1": {ID: "th-1", UserAID: 101, UserBID: 202},
	}}
	users := &fakeUsers{users: map[int64]*model.User{
		101: {ID: 101, Username: "mc_li"},
	}}
	alerts := newFakeAlerts()
	return NewChatFanout(threads, users, NewNotifier(alerts, nil)), alerts
}

func testChatMessage(content string) *model.ChatMessage {
	return &model.ChatMessage{
		ID:       "msg-1",
		ThreadID: "th-1",
		SenderID: 101,
		Content:  content,
	}
}

func TestChatNewMessageNotifiesPeer(t *testing.T) {
	fanout, alerts := newChatFixture()

	ev := mustEvent(t, queue.CollectionChatMessages, "msg-1", nil, testChatMessage("晚上八点棚里见"))
	if err := fanout.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := alerts.forUser(202)
	if len(got) != 1 {
		t.Fatalf("peer alerts = %d, want 1", len(got))
	}
	if got[0].Category != model.AlertNewMessage {
		t.Errorf("category = %s, want %s", got[0].Category, model.AlertNewMessage)
	}
	if got[0].Title != "mc_li" {
		t.Errorf("title = %q, want sender name", got[0].Title)
	}
	if got[0].Message != "晚上八点棚里见" {
		t.Errorf("message = %q", got[0].Message)
	}
	if got[0].Link != "/chats/th-1" {
		t.Errorf("link = %q", got[0].Link)
	}
	// 发送者自己收不到通知
	if len(alerts.forUser(101)) != 0 {
		t.Error("sender received their own message alert")
	}
}

func TestChatLongMessageIsTruncated(t *testing.T) {
	fanout, alerts := newChatFixture()

	long := strings.Repeat("混音参考发你了，", 20)
	ev := mustEvent(t, queue.CollectionChatMessages, "msg-1", nil, testChatMessage(long))
	if err := fanout.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := alerts.forUser(202)
	if len(got) != 1 {
		t.Fatalf("peer alerts = %d, want 1", len(got))
	}
	runes := []rune(got[0].Message)
	if len(runes) != 51 || runes[50] != '…' {
		t.Errorf("preview length = %d runes, last = %q, want 50 + ellipsis",
			len(runes), string(runes[len(runes)-1]))
	}
}

func TestChatSenderOutsideThreadIsDropped(t *testing.T) {
	fanout, alerts := newChatFixture()

	msg := testChatMessage("hello")
	msg.SenderID = 999
	ev := mustEvent(t, queue.CollectionChatMessages, "msg-1", nil, msg)
	if err := fanout.Handle(context.Background(), ev); err != nil {
		t.Fatalf("sender outside thread should be dropped, got: %v", err)
	}
	if len(alerts.created) != 0 {
		t.Error("message from a non-participant produced alerts")
	}
}

func TestChatMissingThreadIsDropped(t *testing.T) {
	fanout, alerts := newChatFixture()

	msg := testChatMessage("hello")
	msg.ThreadID = "th-gone"
	ev := mustEvent(t, queue.CollectionChatMessages, "msg-1", nil, msg)
	if err := fanout.Handle(context.Background(), ev); err != nil {
		t.Fatalf("missing thread should be dropped, got: %v", err)
	}
	if len(alerts.created) != 0 {
		t.Error("message in a missing thread produced alerts")
	}
}

func TestChatUpdateAndDeleteAreIgnored(t *testing.T) {
	fanout, alerts := newChatFixture()

	msg := testChatMessage("edited")
	update := mustEvent(t, queue.CollectionChatMessages, "msg-1", testChatMessage("original"), msg)
	del := mustEvent(t, queue.CollectionChatMessages, "msg-1", msg, nil)
	for _, ev := range []queue.ChangeEvent{update, del} {
		if err := fanout.Handle(context.Background(), ev); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	if len(alerts.created) != 0 {
		t.Error("edit or delete produced alerts")
	}
}

func TestChatUnknownSenderFallsBackToPlaceholderTitle(t *testing.T) {
	fanout, alerts := newChatFixture()

	msg := testChatMessage("ping")
	msg.SenderID = 202 // 202 没有用户记录
	ev := mustEvent(t, queue.CollectionChatMessages, "msg-1", nil, msg)
	if err := fanout.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := alerts.forUser(101)
	if len(got) != 1 {
		t.Fatalf("peer alerts = %d, want 1", len(got))
	}
	if got[0].Title != "新消息" {
		t.Errorf("title = %q, want placeholder", got[0].Title)
	}
}
