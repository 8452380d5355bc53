// Package task はタスク管理のドメインロジックを提供する。
package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/consistency"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/query"
	"github.com/hitoshi/taskman/internal/repository"
)

// UserReader は割り当て先ユーザーの解決に必要な読み取りインターフェース。
type UserReader interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Input はタスクの作成・置換リクエストの入力を表す。
// Deadlineはエポックミリ秒。nilは未指定を意味する。
type Input struct {
	Name             string
	Description      string
	Deadline         *int64
	Completed        bool
	AssignedUser     string
	AssignedUserName string
}

// Service はタスク管理のサービス層。
// CRUD操作のバリデーションと、Coordinator経由の整合性更新を担う。
type Service struct {
	tasks  repository.TaskRepository
	users  UserReader
	coord  *consistency.Coordinator
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(tasks repository.TaskRepository, users UserReader, coord *consistency.Coordinator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tasks: tasks, users: users, coord: coord, logger: logger}
}

// List はクエリ記述子に一致するタスク一覧を返す。
func (s *Service) List(ctx context.Context, d *query.Descriptor) ([]*model.Task, error) {
	tasks, err := s.tasks.List(ctx, d)
	if err != nil {
		return nil, model.NewStorageError(err)
	}
	return tasks, nil
}

// Count はフィルタ条件に一致するタスク数を返す。
func (s *Service) Count(ctx context.Context, conds []query.Condition) (int, error) {
	count, err := s.tasks.Count(ctx, conds)
	if err != nil {
		return 0, model.NewStorageError(err)
	}
	return count, nil
}

// Get は指定IDのタスクを返す。
// ID形式不正はvalidation、未検出はnot_foundのAPIErrorを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewInvalidIDError(id)
	}

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStorageError(err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(id)
	}
	return task, nil
}

// Create はタスクを作成する。
// nameとdeadlineは必須。assignedUserが指定された場合は参照先ユーザーを検証し、
// assignedUserNameを解決する。永続化後、割り当て済みかつ未完了であれば
// 割り当て先ユーザーのpendingTasksにIDを追加する。
func (s *Service) Create(ctx context.Context, in Input) (*model.Task, error) {
	task, err := s.buildTask(ctx, uuid.NewString(), in)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, model.NewStorageError(err)
	}

	// 副作用の失敗は一時的な不整合として受容し、作成自体は成功として返す。
	// 失敗はCoordinatorがログに残す。
	if err := s.coord.TaskCreated(ctx, task); err != nil {
		s.logger.Warn("task created with inconsistent pending list",
			slog.String("task_id", task.ID),
		)
	}

	return task, nil
}

// Update は指定IDのタスクを全置換する。
// 完了済みタスクの更新は拒否する。永続化後、更新前後の状態から
// Coordinatorが整合性の副作用を適用する。
func (s *Service) Update(ctx context.Context, id string, in Input) (*model.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewInvalidIDError(id)
	}

	before, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStorageError(err)
	}
	if before == nil {
		return nil, model.NewTaskNotFoundError(id)
	}

	// 完了済みタスクは削除以外の変更を受け付けない
	if before.Completed {
		return nil, model.NewTaskCompletedError(id)
	}

	after, err := s.buildTask(ctx, id, in)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.Update(ctx, after); err != nil {
		return nil, model.NewStorageError(err)
	}

	if err := s.coord.TaskUpdated(ctx, before, after); err != nil {
		s.logger.Warn("task updated with inconsistent pending list",
			slog.String("task_id", id),
		)
	}

	return after, nil
}

// Delete は指定IDのタスクを削除する。
// 割り当て先ユーザーのpendingTasksからIDを除去してから削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewInvalidIDError(id)
	}

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return model.NewStorageError(err)
	}
	if task == nil {
		return model.NewTaskNotFoundError(id)
	}

	if err := s.coord.TaskDeleted(ctx, task); err != nil {
		s.logger.Warn("deleting task left stale pending list entry",
			slog.String("task_id", id),
		)
	}

	if err := s.tasks.Delete(ctx, id); err != nil {
		return model.NewStorageError(err)
	}

	return nil
}

// buildTask は入力を検証してTaskを組み立てる。
// assignedUserが指定された場合は参照先を解決し、assignedUserNameの整合を確認する。
func (s *Service) buildTask(ctx context.Context, id string, in Input) (*model.Task, error) {
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Deadline == nil {
		missing = append(missing, "deadline")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingFieldError(missing...)
	}

	task := &model.Task{
		ID:               id,
		Name:             in.Name,
		Description:      in.Description,
		Deadline:         time.UnixMilli(*in.Deadline).UTC(),
		Completed:        in.Completed,
		AssignedUserName: model.UnassignedName,
	}

	if in.AssignedUser == "" {
		return task, nil
	}

	if _, err := uuid.Parse(in.AssignedUser); err != nil {
		return nil, model.NewInvalidIDError(in.AssignedUser)
	}

	user, err := s.users.FindByID(ctx, in.AssignedUser)
	if err != nil {
		return nil, model.NewStorageError(err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(in.AssignedUser)
	}

	// 呼び出し側がassignedUserNameを指定した場合は実際のユーザー名と
	// 完全一致していなければならない。未指定の場合は解決結果を使う。
	if in.AssignedUserName != "" && in.AssignedUserName != user.Name {
		return nil, model.NewNameMismatchError(in.AssignedUserName, user.Name)
	}

	task.AssignedUser = user.ID
	task.AssignedUserName = user.Name
	return task, nil
}
