// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/query"
)

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// List はクエリ記述子に一致するタスク一覧を取得する。
	List(ctx context.Context, d *query.Descriptor) ([]*model.Task, error)

	// Count はフィルタ条件に一致するタスク数を返す。
	Count(ctx context.Context, conds []query.Condition) (int, error)

	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// FindByIDs は指定ID群のタスクを取得する。見つからないIDは結果に含まれない。
	FindByIDs(ctx context.Context, ids []string) ([]*model.Task, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// Update はタスクの全フィールドを置き換える。
	Update(ctx context.Context, task *model.Task) error

	// Delete は指定IDのタスクを削除する。
	Delete(ctx context.Context, id string) error

	// SetAssignment は指定タスク群のassignedUser/assignedUserNameを設定する。
	// 1文の原子的な更新として発行される。
	SetAssignment(ctx context.Context, taskIDs []string, userID, userName string) error

	// ClearAssignment は指定タスク群の割り当てを解除する。
	// assignedUserは空文字列、assignedUserNameは"unassigned"になる。
	ClearAssignment(ctx context.Context, taskIDs []string) error
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// List はクエリ記述子に一致するユーザー一覧を取得する。
	List(ctx context.Context, d *query.Descriptor) ([]*model.User, error)

	// Count はフィルタ条件に一致するユーザー数を返す。
	Count(ctx context.Context, conds []query.Condition) (int, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーのname/email/pendingTasksを置き換える。
	// dateCreatedは変更しない。
	Update(ctx context.Context, user *model.User) error

	// Delete は指定IDのユーザーを削除する。
	Delete(ctx context.Context, id string) error

	// AddPendingTask はユーザーのpendingTasksにタスクIDを追加する。
	// すでに含まれている場合は何もしない（冪等）。
	AddPendingTask(ctx context.Context, userID, taskID string) error

	// RemovePendingTask はユーザーのpendingTasksからタスクIDを取り除く。
	RemovePendingTask(ctx context.Context, userID, taskID string) error

	// RemovePendingTasksFromOthers は指定ユーザー以外の全ユーザーの
	// pendingTasksから指定タスクID群を取り除く。
	// タスクの保留中オーナーを高々1人に保つための操作。
	RemovePendingTasksFromOthers(ctx context.Context, taskIDs []string, keepUserID string) error
}
