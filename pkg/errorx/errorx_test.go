package errorx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrapf(cause, CodeDBError, "保存消息 room=%s", "r1")

	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if got := err.Error(); got != "保存消息 room=r1: connection refused" {
		t.Fatalf("unexpected message: %q", got)
	}
	if GetCode(err) != CodeDBError {
		t.Fatalf("expected CodeDBError, got %d", GetCode(err))
	}
}

func TestGetCodeDefaultsToServerBusy(t *testing.T) {
	if got := GetCode(errors.New("boom")); got != CodeServerBusy {
		t.Fatalf("expected %d, got %d", CodeServerBusy, got)
	}
}

func TestIsAndIsNotFound(t *testing.T) {
	nf := fmt.Errorf("service: %w", New(CodeNotFound, "定时任务不存在"))
	if !IsNotFound(nf) {
		t.Fatalf("expected IsNotFound through fmt wrapping")
	}
	if !Is(nf, CodeNotFound) || Is(nf, CodeConflict) {
		t.Fatalf("Is matched the wrong code")
	}
	if IsNotFound(nil) {
		t.Fatalf("nil must not be not-found")
	}
	if !IsNotFound(errors.New("record not found")) {
		t.Fatalf("expected gorm style message to be treated as not-found")
	}
}
