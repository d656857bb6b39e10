package trigger

import (
	"context"
	"testing"

	"StudioLink/model"
	"StudioLink/queue"
)

func testRatingDoc(rating interface{}) map[string]interface{} {
	return map[string]interface{}{
		"beatId":     "beat-1",
		"reviewerId": int64(501),
		"rating":     rating,
	}
}

func newRatingFixture() (*RatingAggregator, *fakeBeats, *fakeAlerts) {
	beats := newFakeBeats()
	beats.beats["beat-1"] = &model.Beat{
		ID:      "beat-1",
		OwnerID: 601,
		Title:   "Night Drive",
		Status:  model.BeatReady,
	}
	alerts := newFakeAlerts()
	users := &fakeUsers{users: map[int64]*model.User{
		501: {ID: 501, Username: "keys_wang"},
	}}
	return NewRatingAggregator(beats, users, NewNotifier(alerts, nil)), beats, alerts
}

func TestRatingCreateMergesAggregateAndNotifiesOwner(t *testing.T) {
	agg, beats, alerts := newRatingFixture()

	ev := mustEvent(t, queue.CollectionBeatRatings, "beat-1:501", nil, testRatingDoc(4))
	if err := agg.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got := beats.beats["beat-1"].RatingMap["501"]; got != 4 {
		t.Errorf("RatingMap[501] = %d, want 4", got)
	}
	ownerAlerts := alerts.forUser(601)
	if len(ownerAlerts) != 1 {
		t.Fatalf("owner alerts = %d, want 1", len(ownerAlerts))
	}
	if ownerAlerts[0].Category != model.AlertNewRating {
		t.Errorf("category = %s, want %s", ownerAlerts[0].Category, model.AlertNewRating)
	}
}

func TestRatingAggregateMatchesEntries(t *testing.T) {
	agg, beats, _ := newRatingFixture()

	// 两个评分人，后者覆盖自己的旧分
	docs := []map[string]interface{}{
		{"beatId": "beat-1", "reviewerId": int64(501), "rating": 4},
		{"beatId": "beat-1", "reviewerId": int64(502), "rating": 2},
	}
	for _, doc := range docs {
		ev := mustEvent(t, queue.CollectionBeatRatings, "x", nil, doc)
		if err := agg.Handle(context.Background(), ev); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	update := mustEvent(t, queue.CollectionBeatRatings, "x",
		map[string]interface{}{"beatId": "beat-1", "reviewerId": int64(502), "rating": 2},
		map[string]interface{}{"beatId": "beat-1", "reviewerId": int64(502), "rating": 5})
	if err := agg.Handle(context.Background(), update); err != nil {
		t.Fatalf("Handle update: %v", err)
	}

	avg, count := beats.beats["beat-1"].AverageRating()
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if avg != 4.5 {
		t.Errorf("avg = %v, want 4.5", avg)
	}
}

func TestRatingDeleteRemovesAggregateKey(t *testing.T) {
	agg, beats, _ := newRatingFixture()
	beats.beats["beat-1"].RatingMap = map[string]int{"501": 4, "502": 3}

	ev := mustEvent(t, queue.CollectionBeatRatings, "beat-1:501", testRatingDoc(4), nil)
	if err := agg.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if _, ok := beats.beats["beat-1"].RatingMap["501"]; ok {
		t.Error("deleted rating still present in aggregate")
	}
	if beats.beats["beat-1"].RatingMap["502"] != 3 {
		t.Error("unrelated rating entry was disturbed")
	}
}

func TestRatingInvalidValueIsDropped(t *testing.T) {
	agg, beats, alerts := newRatingFixture()

	for _, bad := range []interface{}{0, 6, -1, 3.7, "five"} {
		ev := mustEvent(t, queue.CollectionBeatRatings, "x", nil, testRatingDoc(bad))
		if err := agg.Handle(context.Background(), ev); err != nil {
			t.Fatalf("invalid rating %v should be dropped, got error: %v", bad, err)
		}
	}

	if len(beats.beats["beat-1"].RatingMap) != 0 {
		t.Errorf("invalid ratings reached the aggregate: %v", beats.beats["beat-1"].RatingMap)
	}
	if len(alerts.created) != 0 {
		t.Error("invalid ratings produced alerts")
	}
}

func TestRatingOwnSelfRatingSkipsNotification(t *testing.T) {
	agg, beats, alerts := newRatingFixture()

	doc := map[string]interface{}{"beatId": "beat-1", "reviewerId": int64(601), "rating": 5}
	ev := mustEvent(t, queue.CollectionBeatRatings, "beat-1:601", nil, doc)
	if err := agg.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	// 聚合照常合并，只是不投递通知
	if got := beats.beats["beat-1"].RatingMap["601"]; got != 5 {
		t.Errorf("RatingMap[601] = %d, want 5", got)
	}
	if len(alerts.created) != 0 {
		t.Error("self rating produced an owner alert")
	}
}

func TestRatingUpdateNotifiesOwner(t *testing.T) {
	agg, beats, alerts := newRatingFixture()
	beats.beats["beat-1"].RatingMap = map[string]int{"501": 3}

	update := mustEvent(t, queue.CollectionBeatRatings, "beat-1:501",
		testRatingDoc(3), testRatingDoc(5))
	if err := agg.Handle(context.Background(), update); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got := beats.beats["beat-1"].RatingMap["501"]; got != 5 {
		t.Errorf("RatingMap[501] = %d, want 5", got)
	}
	got := alerts.forUser(601)
	if len(got) != 1 {
		t.Fatalf("owner alerts after rating update = %d, want 1", len(got))
	}
	if got[0].Category != model.AlertNewRating {
		t.Errorf("category = %s, want %s", got[0].Category, model.AlertNewRating)
	}
}

func TestRatingForDeletedBeatIsSilent(t *testing.T) {
	agg, _, alerts := newRatingFixture()

	doc := map[string]interface{}{"beatId": "gone", "reviewerId": int64(501), "rating": 4}
	ev := mustEvent(t, queue.CollectionBeatRatings, "gone:501", nil, doc)
	if err := agg.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(alerts.created) != 0 {
		t.Error("rating for a deleted beat produced alerts")
	}
}

func TestRatingRedeliveryIsIdempotent(t *testing.T) {
	agg, beats, alerts := newRatingFixture()

	ev := mustEvent(t, queue.CollectionBeatRatings, "beat-1:501", nil, testRatingDoc(4))
	for i := 0; i < 3; i++ {
		if err := agg.Handle(context.Background(), ev); err != nil {
			t.Fatalf("Handle redelivery %d: %v", i, err)
		}
	}

	avg, count := beats.beats["beat-1"].AverageRating()
	if count != 1 || avg != 4 {
		t.Errorf("aggregate after redelivery = (%v, %d), want (4, 1)", avg, count)
	}
	if len(alerts.created) != 1 {
		t.Errorf("redelivery produced %d alerts, want 1", len(alerts.created))
	}
}
