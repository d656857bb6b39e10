package queue

import (
	"encoding/json"
	"testing"
)

func TestChangeEventKind(t *testing.T) {
	doc := json.RawMessage(`{"id":"x"}`)
	cases := []struct {
		name          string
		before, after json.RawMessage
		want          ChangeKind
	}{
		{"create", nil, doc, ChangeCreate},
		{"update", doc, doc, ChangeUpdate},
		{"delete", doc, nil, ChangeDelete},
		{"both missing", nil, nil, ChangeUnknown},
		// 上游序列化可能把缺失的快照编码成字面量 null
		{"null literal before", json.RawMessage("null"), doc, ChangeCreate},
		{"null literal after", doc, json.RawMessage("null"), ChangeDelete},
		{"both null literals", json.RawMessage("null"), json.RawMessage("null"), ChangeUnknown},
	}
	for _, c := range cases {
		ev := NewChangeEvent(CollectionBookings, "doc-1", c.before, c.after)
		if got := ev.Kind(); got != c.want {
			t.Errorf("%s: Kind() = %s, want %s", c.name, got, c.want)
		}
	}
}

func TestNewChangeEventAssignsIdentity(t *testing.T) {
	a := NewChangeEvent(CollectionBeats, "b-1", nil, json.RawMessage("{}"))
	b := NewChangeEvent(CollectionBeats, "b-1", nil, json.RawMessage("{}"))
	if a.EventID == "" || a.EventID == b.EventID {
		t.Errorf("event ids must be unique and non-empty: %q vs %q", a.EventID, b.EventID)
	}
	if a.OccurredAt.IsZero() {
		t.Error("OccurredAt not set")
	}
	if a.Collection != CollectionBeats || a.DocumentID != "b-1" {
		t.Errorf("identity fields mismatch: %+v", a)
	}
}

func TestDecodeSnapshots(t *testing.T) {
	type doc struct {
		ID string `json:"id"`
	}

	ev := NewChangeEvent(CollectionBookings, "doc-1",
		json.RawMessage(`{"id":"old"}`), json.RawMessage(`{"id":"new"}`))

	var before, after doc
	if ok, err := ev.DecodeBefore(&before); err != nil || !ok || before.ID != "old" {
		t.Errorf("DecodeBefore = (%v, %v), before = %+v", ok, err, before)
	}
	if ok, err := ev.DecodeAfter(&after); err != nil || !ok || after.ID != "new" {
		t.Errorf("DecodeAfter = (%v, %v), after = %+v", ok, err, after)
	}

	// 缺失的快照返回 false 且不触碰出参
	missing := NewChangeEvent(CollectionBookings, "doc-1", nil, json.RawMessage("null"))
	var out doc
	out.ID = "untouched"
	if ok, err := missing.DecodeBefore(&out); ok || err != nil || out.ID != "untouched" {
		t.Errorf("DecodeBefore on missing snapshot = (%v, %v), out = %+v", ok, err, out)
	}
	if ok, err := missing.DecodeAfter(&out); ok || err != nil || out.ID != "untouched" {
		t.Errorf("DecodeAfter on null snapshot = (%v, %v), out = %+v", ok, err, out)
	}

	// 烂载荷返回错误
	bad := NewChangeEvent(CollectionBookings, "doc-1", nil, json.RawMessage(`{"id":42}`))
	if _, err := bad.DecodeAfter(&after); err == nil {
		t.Error("DecodeAfter on malformed payload returned nil error")
	}
}
