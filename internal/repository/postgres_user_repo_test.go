package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Userモデルのフィールドが正しく構築されることを検証
func TestPostgresUserRepo_UserModel_Fields(t *testing.T) {
	now := time.Now().UTC()
	user := &model.User{
		ID:           "user-id-1",
		Name:         "Alice",
		Email:        "alice@example.com",
		PendingTasks: []string{"task-id-1", "task-id-2"},
		DateCreated:  now,
	}

	if user.Email != "alice@example.com" {
		t.Errorf("user.Email = %q, want %q", user.Email, "alice@example.com")
	}
	if !user.HasPendingTask("task-id-1") {
		t.Error("pendingTasksに含まれるIDはHasPendingTask=trueであるべき")
	}
	if user.HasPendingTask("task-id-9") {
		t.Error("pendingTasksに含まれないIDはHasPendingTask=falseであるべき")
	}
}

// pendingTasksが空でもHasPendingTaskが安全に動作することを検証
func TestPostgresUserRepo_UserModel_EmptyPendingTasks(t *testing.T) {
	user := &model.User{ID: "user-id-2", Name: "Bob", Email: "bob@example.com"}

	if user.HasPendingTask("task-id-1") {
		t.Error("空のpendingTasksではHasPendingTask=falseであるべき")
	}
}
