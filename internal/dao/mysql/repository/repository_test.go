package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"chat_relay_server/internal/model"
	"chat_relay_server/pkg/errorx"

	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlRecorder 记录 DryRun 模式下生成的 SQL
type sqlRecorder struct {
	mu    sync.Mutex
	stmts []string
}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface       { return r }
func (r *sqlRecorder) Info(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Warn(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Error(context.Context, string, ...interface{}) {}
func (r *sqlRecorder) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	sql, _ := fc()
	r.mu.Lock()
	r.stmts = append(r.stmts, sql)
	r.mu.Unlock()
}

func (r *sqlRecorder) last(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stmts) == 0 {
		t.Fatalf("no SQL recorded")
	}
	return r.stmts[len(r.stmts)-1]
}

func newDryRunDB(t *testing.T) (*gorm.DB, *sqlRecorder) {
	t.Helper()
	rec := &sqlRecorder{}
	db, err := gorm.Open(mysqldriver.New(mysqldriver.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/chat?parseTime=True",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 rec,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db, rec
}

func assertContains(t *testing.T, sql string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(sql, p) {
			t.Fatalf("expected SQL to contain %q\nSQL: %s", p, sql)
		}
	}
}

func TestChatMessageSaveBatchSQL(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewChatMessageRepository(db)

	err := repo.SaveBatch(context.Background(), []model.BufferedMessage{
		{ID: 1, RoomID: "r1", SenderID: "alice", Kind: model.MessageKindText, Content: "hi", Ts: 10},
		{ID: 2, RoomID: "r1", SenderID: "bob", Kind: model.MessageKindMedia, MediaType: "IMAGE", MediaURL: "/f/a.png", Ts: 11},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	assertContains(t, rec.last(t), "INSERT INTO `chat_message`", "'alice'", "'/f/a.png'", "ON DUPLICATE KEY UPDATE")
}

func TestChatMessageSaveBatchEmptyIsNoop(t *testing.T) {
	db, rec := newDryRunDB(t)
	if err := NewChatMessageRepository(db).SaveBatch(context.Background(), nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(rec.stmts) != 0 {
		t.Fatalf("expected no SQL, got %v", rec.stmts)
	}
}

func TestRecentByRoomSQL(t *testing.T) {
	db, _ := newDryRunDB(t)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var out []model.ChatMessage
		return tx.Scopes(recentByRoom("r1", 50)).Find(&out)
	})
	assertContains(t, sql, "FROM `chat_message`", "room_id = 'r1'", "ORDER BY ts DESC,id DESC", "LIMIT 50")
}

func TestDueAtSQL(t *testing.T) {
	db, _ := newDryRunDB(t)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var out []model.ScheduledDispatch
		return tx.Scopes(dueAt(1700000000000)).Find(&out)
	})
	assertContains(t, sql, "FROM `scheduled_dispatch`", "status = 'PENDING'", "scheduled_at <= 1700000000000", "ORDER BY scheduled_at ASC,id ASC")
}

func TestUpdateStatusIsConditional(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewScheduledDispatchRepository(db)

	executedAt := int64(1234)
	if _, err := repo.UpdateStatus(context.Background(), 7, model.DispatchStatusPending, model.DispatchStatusSent, &executedAt); err != nil {
		t.Fatalf("update: %v", err)
	}
	assertContains(t, rec.last(t), "UPDATE `scheduled_dispatch`", "`status`='SENT'", "`executed_at`=1234", "id = 7 AND status = 'PENDING'")
}

func TestWrapDBError(t *testing.T) {
	if wrapDBError(nil, "x") != nil {
		t.Fatalf("nil must stay nil")
	}
	if err := wrapDBErrorf(gorm.ErrRecordNotFound, "定时任务 id=%d", 1); !errorx.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	err := wrapDBError(errors.New("deadlock"), "保存")
	if errorx.GetCode(err) != errorx.CodeDBError {
		t.Fatalf("expected CodeDBError, got %d", errorx.GetCode(err))
	}
}
