package trigger

import (
	"context"
	"testing"

	"StudioLink/model"
	"StudioLink/queue"
)

func testDownloadRequest(t *testing.T, status model.DownloadStatus) *model.DownloadRequest {
	t.Helper()
	created := mustTime(t, "2026-08-01T09:00:00Z")
	req := &model.DownloadRequest{
		ID:          "dr-1",
		BeatID:      "beat-1",
		ProducerID:  601,
		RequesterID: 501,
		BeatTitle:   "Night Drive",
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	if status != model.DownloadPending {
		decided := mustTime(t, "2026-08-02T10:00:00Z")
		req.DecidedAt = &decided
		req.UpdatedAt = decided
	}
	if status == model.DownloadFulfilled {
		req.DownloadURL = "https://minio.local/beats/beat-1.mp3?sig=abc"
	}
	return req
}

func newDownloadFixture() (*DownloadLifecycle, *fakeGrants, *fakeAlerts) {
	grants := newFakeGrants()
	alerts := newFakeAlerts()
	beats := newFakeBeats()
	beats.beats["beat-1"] = &model.Beat{ID: "beat-1", OwnerID: 601, Title: "Night Drive (master)"}
	return NewDownloadLifecycle(grants, beats, NewNotifier(alerts, nil)), grants, alerts
}

func TestDownloadFulfillWritesGrantWithURL(t *testing.T) {
	lc, grants, alerts := newDownloadFixture()

	before := testDownloadRequest(t, model.DownloadPending)
	after := testDownloadRequest(t, model.DownloadFulfilled)
	ev := mustEvent(t, queue.CollectionDownloadReqs, "dr-1", before, after)
	if err := lc.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	grant := grants.grants["dr-1"]
	if grant == nil {
		t.Fatal("no grant was mirrored")
	}
	if grant.Status != model.DownloadFulfilled {
		t.Errorf("grant status = %s, want fulfilled", grant.Status)
	}
	if grant.DownloadURL != after.DownloadURL {
		t.Errorf("grant url = %q, want %q", grant.DownloadURL, after.DownloadURL)
	}
	if grant.RequesterID != 501 || grant.BeatID != "beat-1" {
		t.Errorf("grant identity mismatch: %+v", grant)
	}
	if grant.DecidedAt == nil || !grant.DecidedAt.Equal(*after.DecidedAt) {
		t.Errorf("grant decidedAt = %v, want %v", grant.DecidedAt, after.DecidedAt)
	}

	got := alerts.forUser(501)
	if len(got) != 1 {
		t.Fatalf("requester alerts = %d, want 1", len(got))
	}
	if got[0].Category != model.AlertDownloadReady {
		t.Errorf("category = %s, want %s", got[0].Category, model.AlertDownloadReady)
	}
}

func TestDownloadRejectWritesGrantWithoutURL(t *testing.T) {
	lc, grants, alerts := newDownloadFixture()

	before := testDownloadRequest(t, model.DownloadPending)
	after := testDownloadRequest(t, model.DownloadRejected)
	ev := mustEvent(t, queue.CollectionDownloadReqs, "dr-1", before, after)
	if err := lc.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	grant := grants.grants["dr-1"]
	if grant == nil {
		t.Fatal("no grant was mirrored")
	}
	if grant.Status != model.DownloadRejected {
		t.Errorf("grant status = %s, want rejected", grant.Status)
	}
	if grant.DownloadURL != "" {
		t.Errorf("rejected grant carries url %q, want empty", grant.DownloadURL)
	}

	got := alerts.forUser(501)
	if len(got) != 1 || got[0].Category != model.AlertDownloadDeclined {
		t.Fatalf("requester alerts = %+v, want one declined alert", got)
	}
}

func TestDownloadUnchangedStatusIsIgnored(t *testing.T) {
	lc, grants, alerts := newDownloadFixture()

	// 同状态的重写（比如标题修正）不触发镜像
	before := testDownloadRequest(t, model.DownloadFulfilled)
	after := testDownloadRequest(t, model.DownloadFulfilled)
	after.BeatTitle = "Night Drive v2"
	ev := mustEvent(t, queue.CollectionDownloadReqs, "dr-1", before, after)
	if err := lc.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if grants.upserts != 0 || len(alerts.created) != 0 {
		t.Errorf("unchanged status caused side effects: upserts=%d alerts=%d",
			grants.upserts, len(alerts.created))
	}
}

func TestDownloadCreateEventIsIgnored(t *testing.T) {
	lc, grants, _ := newDownloadFixture()

	ev := mustEvent(t, queue.CollectionDownloadReqs, "dr-1", nil, testDownloadRequest(t, model.DownloadPending))
	if err := lc.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if grants.upserts != 0 {
		t.Error("create event wrote a grant")
	}
}

func TestDownloadSelfRequestIsSkipped(t *testing.T) {
	lc, grants, alerts := newDownloadFixture()

	before := testDownloadRequest(t, model.DownloadPending)
	after := testDownloadRequest(t, model.DownloadFulfilled)
	before.RequesterID = 601
	after.RequesterID = 601
	ev := mustEvent(t, queue.CollectionDownloadReqs, "dr-1", before, after)
	if err := lc.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if grants.upserts != 0 || len(alerts.created) != 0 {
		t.Error("producer's own request was mirrored or notified")
	}
}

func TestDownloadTitleFallbackChain(t *testing.T) {
	lc, grants, _ := newDownloadFixture()

	// 请求上没有标题快照时回查伴奏
	before := testDownloadRequest(t, model.DownloadPending)
	after := testDownloadRequest(t, model.DownloadFulfilled)
	before.BeatTitle = ""
	after.BeatTitle = ""
	ev := mustEvent(t, queue.CollectionDownloadReqs, "dr-1", before, after)
	if err := lc.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := grants.grants["dr-1"].BeatTitle; got != "Night Drive (master)" {
		t.Errorf("title = %q, want the beat record's title", got)
	}

	// 伴奏也查不到时落占位标题
	before2 := testDownloadRequest(t, model.DownloadPending)
	after2 := testDownloadRequest(t, model.DownloadFulfilled)
	before2.ID, after2.ID = "dr-2", "dr-2"
	before2.BeatID, after2.BeatID = "gone", "gone"
	before2.BeatTitle, after2.BeatTitle = "", ""
	ev2 := mustEvent(t, queue.CollectionDownloadReqs, "dr-2", before2, after2)
	if err := lc.Handle(context.Background(), ev2); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := grants.grants["dr-2"].BeatTitle; got != "未知伴奏" {
		t.Errorf("title = %q, want placeholder", got)
	}
}

func TestDownloadRedeliveryIsIdempotent(t *testing.T) {
	lc, grants, alerts := newDownloadFixture()

	ev := mustEvent(t, queue.CollectionDownloadReqs, "dr-1",
		testDownloadRequest(t, model.DownloadPending), testDownloadRequest(t, model.DownloadFulfilled))
	for i := 0; i < 3; i++ {
		if err := lc.Handle(context.Background(), ev); err != nil {
			t.Fatalf("Handle redelivery %d: %v", i, err)
		}
	}

	if len(grants.grants) != 1 {
		t.Errorf("grant rows = %d, want 1", len(grants.grants))
	}
	if len(alerts.created) != 1 {
		t.Errorf("alerts = %d, want 1", len(alerts.created))
	}
}
