// Package consistency はTask.assignedUserとUser.pendingTasksの
// 双方向参照を維持する協調ロジックを提供する。
// 双方向参照への書き込みはすべてこのパッケージを経由させ、
// 各呼び出し先でルールが散在しないようにする。
//
// 各更新はストレージへの1文の原子的操作として発行され、複数ドキュメントに
// またがるトランザクションは使用しない。操作間で障害が起きた場合、
// 参照は一時的に不整合になりうる（ベストエフォート整合性モデル）。
package consistency

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/taskman/internal/model"
)

// AssignmentWriter はタスク側の割り当てフィールドを書き換えるインターフェース。
type AssignmentWriter interface {
	// SetAssignment は指定タスク群のassignedUser/assignedUserNameを設定する。
	SetAssignment(ctx context.Context, taskIDs []string, userID, userName string) error
	// ClearAssignment は指定タスク群の割り当てを解除する。
	ClearAssignment(ctx context.Context, taskIDs []string) error
}

// PendingListWriter はユーザー側のpendingTasksを書き換えるインターフェース。
type PendingListWriter interface {
	// AddPendingTask はpendingTasksにタスクIDを冪等に追加する。
	AddPendingTask(ctx context.Context, userID, taskID string) error
	// RemovePendingTask はpendingTasksからタスクIDを取り除く。
	RemovePendingTask(ctx context.Context, userID, taskID string) error
	// RemovePendingTasksFromOthers は指定ユーザー以外のpendingTasksから
	// タスクID群を取り除く。
	RemovePendingTasksFromOthers(ctx context.Context, taskIDs []string, keepUserID string) error
}

// Coordinator はTask↔User間の参照整合性ルールを適用する。
// すべてのメソッドはエラーを返す。ベストエフォート扱いにするかどうかは
// 呼び出し側が決めるが、失敗は必ずログに残る。
type Coordinator struct {
	tasks  AssignmentWriter
	users  PendingListWriter
	logger *slog.Logger
}

// NewCoordinator はCoordinatorを生成する。
func NewCoordinator(tasks AssignmentWriter, users PendingListWriter, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{tasks: tasks, users: users, logger: logger}
}

// TaskCreated はタスク作成後の整合性更新を行う。
// 割り当て済みかつ未完了の場合、割り当て先ユーザーのpendingTasksにIDを追加する。
func (c *Coordinator) TaskCreated(ctx context.Context, task *model.Task) error {
	if !task.IsPending() {
		return nil
	}
	if err := c.users.AddPendingTask(ctx, task.AssignedUser, task.ID); err != nil {
		c.logger.Error("failed to add task to pending list",
			slog.String("task_id", task.ID),
			slog.String("user_id", task.AssignedUser),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// TaskUpdated はタスク更新後の整合性更新を行う。
// 更新前後の状態から3つの独立した副作用を評価する:
//
//  1. 割り当て先が変わった場合、旧ユーザーのpendingTasksからIDを除去する。
//  2. 更新後に割り当て済みかつ未完了の場合、新ユーザーのpendingTasksにIDを追加する。
//  3. 未完了から完了に遷移しかつ割り当て済みの場合、そのユーザーの
//     pendingTasksからIDを除去する。
//
// 各副作用は独立に実行し、失敗しても残りを続行する。
func (c *Coordinator) TaskUpdated(ctx context.Context, before, after *model.Task) error {
	var errs []error

	if before.IsAssigned() && before.AssignedUser != after.AssignedUser {
		if err := c.users.RemovePendingTask(ctx, before.AssignedUser, before.ID); err != nil {
			c.logger.Error("failed to remove task from previous assignee",
				slog.String("task_id", before.ID),
				slog.String("user_id", before.AssignedUser),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}

	if after.IsPending() {
		if err := c.users.AddPendingTask(ctx, after.AssignedUser, after.ID); err != nil {
			c.logger.Error("failed to add task to pending list",
				slog.String("task_id", after.ID),
				slog.String("user_id", after.AssignedUser),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}

	if !before.Completed && after.Completed && after.IsAssigned() {
		if err := c.users.RemovePendingTask(ctx, after.AssignedUser, after.ID); err != nil {
			c.logger.Error("failed to remove completed task from pending list",
				slog.String("task_id", after.ID),
				slog.String("user_id", after.AssignedUser),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// TaskDeleted はタスク削除前の整合性更新を行う。
// 割り当て先ユーザーのpendingTasksからIDを除去する。
func (c *Coordinator) TaskDeleted(ctx context.Context, task *model.Task) error {
	if !task.IsAssigned() {
		return nil
	}
	if err := c.users.RemovePendingTask(ctx, task.AssignedUser, task.ID); err != nil {
		c.logger.Error("failed to remove deleted task from pending list",
			slog.String("task_id", task.ID),
			slog.String("user_id", task.AssignedUser),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// AttachTasks は指定タスク群をユーザーに割り当てる。
// タスク側のassignedUser/assignedUserNameをユーザーのID/名前に設定する。
func (c *Coordinator) AttachTasks(ctx context.Context, user *model.User, taskIDs []string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	if err := c.tasks.SetAssignment(ctx, taskIDs, user.ID, user.Name); err != nil {
		c.logger.Error("failed to attach tasks to user",
			slog.String("user_id", user.ID),
			slog.Int("task_count", len(taskIDs)),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// DetachTasks は指定タスク群の割り当てを解除する。
// assignedUserは空文字列、assignedUserNameは"unassigned"になる。
func (c *Coordinator) DetachTasks(ctx context.Context, taskIDs []string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	if err := c.tasks.ClearAssignment(ctx, taskIDs); err != nil {
		c.logger.Error("failed to detach tasks",
			slog.Int("task_count", len(taskIDs)),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// ClaimTasks は指定タスク群をユーザーに排他的に引き取らせる。
// 他ユーザーのpendingTasksからIDを取り除いた上でタスク側の割り当てを設定し、
// タスクの保留中オーナーが高々1人になることを保証する。
func (c *Coordinator) ClaimTasks(ctx context.Context, user *model.User, taskIDs []string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	if err := c.users.RemovePendingTasksFromOthers(ctx, taskIDs, user.ID); err != nil {
		c.logger.Error("failed to strip tasks from other users",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return c.AttachTasks(ctx, user, taskIDs)
}
