package trigger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"StudioLink/model"
	"StudioLink/queue"
)

// mustEvent 构造一个带前后快照的变更事件，快照序列化失败直接让测试失败。
func mustEvent(t *testing.T, collection, documentID string, before, after interface{}) queue.ChangeEvent {
	t.Helper()

	var beforeRaw, afterRaw json.RawMessage
	if before != nil {
		data, err := json.Marshal(before)
		if err != nil {
			t.Fatalf("marshal before snapshot: %v", err)
		}
		beforeRaw = data
	}
	if after != nil {
		data, err := json.Marshal(after)
		if err != nil {
			t.Fatalf("marshal after snapshot: %v", err)
		}
		afterRaw = data
	}
	return queue.NewChangeEvent(collection, documentID, beforeRaw, afterRaw)
}

func holdKey(ownerType model.HoldOwnerType, ownerID int64, bookingID string) string {
	return fmt.Sprintf("%s:%d:%s", ownerType, ownerID, bookingID)
}

// fakeHolds 内存版占位镜像，复刻真实写端的更新序号守卫语义。
type fakeHolds struct {
	holds      map[string]*model.AvailabilityHold
	upserts    int
	failUpsert bool
	failDelete bool
}

func newFakeHolds() *fakeHolds {
	return &fakeHolds{holds: make(map[string]*model.AvailabilityHold)}
}

func (f *fakeHolds) Upsert(_ context.Context, hold *model.AvailabilityHold) error {
	if f.failUpsert {
		return errors.New("hold store down")
	}
	f.upserts++
	key := holdKey(hold.OwnerType, hold.OwnerID, hold.BookingID)
	if existing, ok := f.holds[key]; ok && hold.SourceUpdatedAt.Before(existing.SourceUpdatedAt) {
		return nil
	}
	cp := *hold
	f.holds[key] = &cp
	return nil
}

func (f *fakeHolds) Delete(_ context.Context, ownerType model.HoldOwnerType, ownerID int64, bookingID string) error {
	if f.failDelete {
		return errors.New("hold store down")
	}
	delete(f.holds, holdKey(ownerType, ownerID, bookingID))
	return nil
}

func (f *fakeHolds) get(ownerType model.HoldOwnerType, ownerID int64, bookingID string) *model.AvailabilityHold {
	return f.holds[holdKey(ownerType, ownerID, bookingID)]
}

// fakeAlerts 内存版通知存储，复刻 INSERT IGNORE 的同键只写一次语义。
type fakeAlerts struct {
	byID       map[string]*model.Alert
	created    []*model.Alert
	failCreate bool
}

func newFakeAlerts() *fakeAlerts {
	return &fakeAlerts{byID: make(map[string]*model.Alert)}
}

func (f *fakeAlerts) Create(_ context.Context, alert *model.Alert) error {
	if f.failCreate {
		return errors.New("alert store down")
	}
	if _, ok := f.byID[alert.ID]; ok {
		return nil
	}
	cp := *alert
	f.byID[alert.ID] = &cp
	f.created = append(f.created, &cp)
	return nil
}

func (f *fakeAlerts) forUser(userID int64) []*model.Alert {
	var out []*model.Alert
	for _, a := range f.created {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

// fakeStudios 内存版录音棚归属表
type fakeStudios struct {
	owners  map[int64]int64
	failAll bool
}

func (f *fakeStudios) OwnerID(_ context.Context, studioID int64) (int64, error) {
	if f.failAll {
		return 0, errors.New("studio store down")
	}
	ownerID, ok := f.owners[studioID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return ownerID, nil
}

// fakeUsers 内存版用户目录
type fakeUsers struct {
	users map[int64]*model.User
}

func (f *fakeUsers) GetUserByID(id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

// fakeBeats 内存版伴奏存储，聚合map按评分人ID为键覆盖。
type fakeBeats struct {
	beats   map[string]*model.Beat
	failSet bool
}

func newFakeBeats() *fakeBeats {
	return &fakeBeats{beats: make(map[string]*model.Beat)}
}

func (f *fakeBeats) GetByID(_ context.Context, id string) (*model.Beat, error) {
	b, ok := f.beats[id]
	if !ok {
		return nil, nil
	}
	return b, nil
}

func (f *fakeBeats) SetRating(_ context.Context, beatID string, reviewerID int64, rating int) error {
	if f.failSet {
		return errors.New("beat store down")
	}
	b, ok := f.beats[beatID]
	if !ok {
		return nil // 父伴奏已删除，静默跳过
	}
	if b.RatingMap == nil {
		b.RatingMap = make(map[string]int)
	}
	b.RatingMap[strconv.FormatInt(reviewerID, 10)] = rating
	return nil
}

func (f *fakeBeats) RemoveRating(_ context.Context, beatID string, reviewerID int64) error {
	b, ok := f.beats[beatID]
	if !ok {
		return nil
	}
	delete(b.RatingMap, strconv.FormatInt(reviewerID, 10))
	return nil
}

// fakeGrants 内存版下载放行镜像，键为来源请求ID。
type fakeGrants struct {
	grants  map[string]*model.DownloadGrant
	upserts int
}

func newFakeGrants() *fakeGrants {
	return &fakeGrants{grants: make(map[string]*model.DownloadGrant)}
}

func (f *fakeGrants) UpsertGrant(_ context.Context, grant *model.DownloadGrant) error {
	f.upserts++
	cp := *grant
	f.grants[grant.RequestID] = &cp
	return nil
}

// fakeThreads 内存版会话目录
type fakeThreads struct {
	threads map[string]*model.ChatThread
}

func (f *fakeThreads) GetThread(_ context.Context, threadID string) (*model.ChatThread, error) {
	t, ok := f.threads[threadID]
	if !ok {
		return nil, nil
	}
	return t, nil
}
