package errorx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeDBError, "查询会话失败")

	if !errors.Is(err, cause) {
		t.Error("errors.Is 应能追溯到底层错误")
	}
	if GetCode(err) != CodeDBError {
		t.Errorf("错误码应为 %d, 得到 %d", CodeDBError, GetCode(err))
	}

	// 再包一层普通错误，As 仍能提取
	outer := fmt.Errorf("service: %w", err)
	var codeErr *CodeError
	if !errors.As(outer, &codeErr) {
		t.Fatal("errors.As 应能提取 CodeError")
	}
	if codeErr.Code != CodeDBError {
		t.Errorf("提取的错误码错误: %d", codeErr.Code)
	}
}

func TestGetCodeFallback(t *testing.T) {
	if GetCode(errors.New("plain")) != CodeServerBusy {
		t.Error("非 CodeError 应回落到服务繁忙码")
	}
}

func TestPredicates(t *testing.T) {
	if !IsNotFound(New(CodeNotFound, "没有")) {
		t.Error("IsNotFound 判定失败")
	}
	if !IsNotFound(errors.New("record not found")) {
		t.Error("IsNotFound 应识别 gorm 的未找到错误")
	}
	if IsNotFound(New(CodeAccessDenied, "拒绝")) {
		t.Error("权限错误不应被判定为未找到")
	}
	if !IsAccessDenied(ErrAccessDenied) {
		t.Error("IsAccessDenied 判定失败")
	}
	if !IsStateConflict(Newf(CodeStateConflict, "群 %s 已停用", "G1")) {
		t.Error("IsStateConflict 判定失败")
	}
}
