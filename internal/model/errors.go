// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// CategoryはHTTPステータスコードへのマッピングに使用される。
// Detailにはクライアントに返す補足情報（対象ID一覧など）を入れる。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, not_found, conflict, storage
	Detail   any    // 補足情報（省略可）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryNotFound   = "not_found"
	CategoryConflict   = "conflict"
	CategoryStorage    = "storage"
)

// 定義済みエラーコード
const (
	ErrCodeMissingField       = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidID          = "INVALID_ID"
	ErrCodeInvalidQuery       = "INVALID_QUERY"
	ErrCodeInvalidBody        = "INVALID_BODY"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeTaskCompleted      = "TASK_COMPLETED"
	ErrCodeNameMismatch       = "ASSIGNED_USER_NAME_MISMATCH"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeStorageFailure     = "STORAGE_FAILURE"
)

// NewMissingFieldError は必須フィールド欠落エラーを生成する。
func NewMissingFieldError(fields ...string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("required fields are missing: %s", strings.Join(fields, ", ")),
		Category: CategoryValidation,
		Detail:   fields,
	}
}

// NewInvalidIDError はID形式不正エラーを生成する。
func NewInvalidIDError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("invalid id format: %s", id),
		Category: CategoryValidation,
	}
}

// NewInvalidQueryError はクエリパラメータ解析失敗エラーを生成する。
func NewInvalidQueryError(param, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  fmt.Sprintf("invalid %s parameter: %s", param, reason),
		Category: CategoryValidation,
	}
}

// NewInvalidBodyError はリクエストボディ解析失敗エラーを生成する。
func NewInvalidBodyError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidBody,
		Message:  "request body could not be parsed as JSON",
		Category: CategoryValidation,
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("task not found: %s", id),
		Category: CategoryNotFound,
	}
}

// NewTasksNotFoundError は複数タスク未検出エラーを生成する。
// 見つからなかったID一覧をDetailに含める。
func NewTasksNotFoundError(ids []string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("tasks not found: %s", strings.Join(ids, ", ")),
		Category: CategoryNotFound,
		Detail:   ids,
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("user not found: %s", id),
		Category: CategoryNotFound,
	}
}

// NewTaskCompletedError は完了済みタスクの変更拒否エラーを生成する。
func NewTaskCompletedError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskCompleted,
		Message:  fmt.Sprintf("completed task cannot be modified: %s", id),
		Category: CategoryValidation,
	}
}

// NewCompletedTasksError は完了済みタスクの割り当て拒否エラーを生成する。
// 対象ID一覧をDetailに含める。
func NewCompletedTasksError(ids []string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskCompleted,
		Message:  fmt.Sprintf("completed tasks cannot be assigned: %s", strings.Join(ids, ", ")),
		Category: CategoryValidation,
		Detail:   ids,
	}
}

// NewNameMismatchError はassignedUserNameの不一致エラーを生成する。
// クライアントが送った値と実際のユーザー名の両方をDetailに含める。
func NewNameMismatchError(provided, actual string) *APIError {
	return &APIError{
		Code:     ErrCodeNameMismatch,
		Message:  fmt.Sprintf("assignedUserName %q does not match user name %q", provided, actual),
		Category: CategoryValidation,
		Detail:   map[string]string{"provided": provided, "actual": actual},
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  fmt.Sprintf("email already exists: %s", email),
		Category: CategoryConflict,
	}
}

// NewStorageError はストレージ層の予期せぬ失敗を生成する。
// 診断のため元エラーの文字列をDetailとしてクライアントに渡す。
func NewStorageError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailure,
		Message:  "unexpected storage failure",
		Category: CategoryStorage,
		Detail:   err.Error(),
	}
}
