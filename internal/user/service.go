// Package user はユーザー管理のドメインロジックを提供する。
package user

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

// TaskReader はpendingTasks検証に必要なタスク読み取りインターフェース。
type TaskReader interface {
	// FindByIDs は指定ID群のタスクを取得する。見つからないIDは結果に含まれない。
	FindByIDs(ctx context.Context, ids []string) ([]*model.Task, error)
}

// Input はユーザーの作成・置換リクエストの入力を表す。
type Input struct {
	Name         string
	Email        string
	PendingTasks []string
}

// Service はユーザー管理のサービス層。
// メールアドレスの一意性、pendingTasksの検証、およびCoordinator経由の
// タスク再割り当てを担う。
type Service struct {
	users  repository.UserRepository
	tasks  TaskReader
	coord  *consistency.Coordinator
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserRepository, tasks TaskReader, coord *consistency.Coordinator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, tasks: tasks, coord: coord, logger: logger}
}

// List はクエリ記述子に一致するユーザー一覧を返す。
func (s *Service) List(ctx context.Context, d *query.Descriptor) ([]*model.User, error) {
	users, err := s.users.List(ctx, d)
	if err != nil {
		return nil, model.NewStorageError(err)
	}
	return users, nil
}

// Count はフィルタ条件に一致するユーザー数を返す。
func (s *Service) Count(ctx context.Context, conds []query.Condition) (int, error) {
	count, err := s.users.Count(ctx, conds)
	if err != nil {
		return 0, model.NewStorageError(err)
	}
	return count, nil
}

// Get は指定IDのユーザーを返す。
// ID形式不正はvalidation、未検出はnot_foundのAPIErrorを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewInvalidIDError(id)
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStorageError(err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return user, nil
}

// Create はユーザーを作成する。
// nameとemailは必須。emailは全ユーザーで一意でなければならない。
// pendingTasksが指定された場合は全タスクを検証し、永続化後に
// それらのタスクをこのユーザーに割り当てる（ベストエフォート）。
func (s *Service) Create(ctx context.Context, in Input) (*model.User, error) {
	if err := s.validateRequired(in); err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, model.NewStorageError(err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError(in.Email)
	}

	pending := in.PendingTasks
	if pending == nil {
		pending = []string{}
	}
	if len(pending) > 0 {
		if err := s.validatePendingTasks(ctx, pending); err != nil {
			return nil, err
		}
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PendingTasks: pending,
		DateCreated:  time.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, model.NewStorageError(err)
	}

	// 列挙されたタスクへの割り当て反映はベストエフォート。
	// 失敗しても作成自体は成功として返す（失敗はログに残る）。
	if err := s.coord.AttachTasks(ctx, user, pending); err != nil {
		s.logger.Warn("user created but task assignment not fully applied",
			slog.String("user_id", user.ID),
		)
	}

	return user, nil
}

// Update は指定IDのユーザーを全置換する。
// 現在のpendingTasksと新しいリストの対称差を計算し、
// 取り除かれたタスクは割り当て解除、追加されたタスクは検証の上で
// このユーザーに排他的に割り当てる。dateCreatedは変更されない。
func (s *Service) Update(ctx context.Context, id string, in Input) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewInvalidIDError(id)
	}
	if err := s.validateRequired(in); err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, model.NewStorageError(err)
	}
	if existing != nil && existing.ID != id {
		return nil, model.NewDuplicateEmailError(in.Email)
	}

	current, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStorageError(err)
	}
	if current == nil {
		return nil, model.NewUserNotFoundError(id)
	}

	pending := in.PendingTasks
	if pending == nil {
		pending = []string{}
	}

	removed, added := diffPendingTasks(current.PendingTasks, pending)

	// 追加分の検証失敗は操作全体を失敗させる
	if len(added) > 0 {
		if err := s.validatePendingTasks(ctx, added); err != nil {
			return nil, err
		}
	}

	// リストから取り除かれたタスクの割り当て解除はベストエフォートの後始末
	if err := s.coord.DetachTasks(ctx, removed); err != nil {
		s.logger.Warn("stale task assignments were not fully cleared",
			slog.String("user_id", id),
		)
	}

	updated := &model.User{
		ID:           id,
		Name:         in.Name,
		Email:        in.Email,
		PendingTasks: pending,
		DateCreated:  current.DateCreated,
	}

	// 追加分を他ユーザーから剥奪した上でこのユーザーに割り当てる
	if err := s.coord.ClaimTasks(ctx, updated, added); err != nil {
		return nil, model.NewStorageError(err)
	}

	if err := s.users.Update(ctx, updated); err != nil {
		return nil, model.NewStorageError(err)
	}

	return updated, nil
}

// Delete は指定IDのユーザーを削除する。
// 削除前にpendingTasks内の全タスクの割り当てを解除する（タスク自体は残る）。
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewInvalidIDError(id)
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.NewStorageError(err)
	}
	if user == nil {
		return model.NewUserNotFoundError(id)
	}

	if err := s.coord.DetachTasks(ctx, user.PendingTasks); err != nil {
		s.logger.Warn("deleting user left stale task assignments",
			slog.String("user_id", id),
		)
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return model.NewStorageError(err)
	}

	return nil
}

// validateRequired はnameとemailの必須チェックを行う。
func (s *Service) validateRequired(in Input) error {
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return model.NewMissingFieldError(missing...)
	}
	return nil
}

// validatePendingTasks はpendingTasksに列挙されたタスクID群を検証する。
// ID形式不正はvalidation、未検出はnot_found（対象ID一覧つき）、
// 完了済みタスクはvalidation（対象ID一覧つき）のAPIErrorを返す。
func (s *Service) validatePendingTasks(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return model.NewInvalidIDError(id)
		}
	}

	tasks, err := s.tasks.FindByIDs(ctx, ids)
	if err != nil {
		return model.NewStorageError(err)
	}

	found := make(map[string]*model.Task, len(tasks))
	for _, t := range tasks {
		found[t.ID] = t
	}

	var missing []string
	var completed []string
	for _, id := range ids {
		t, ok := found[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if t.Completed {
			completed = append(completed, id)
		}
	}

	if len(missing) > 0 {
		return model.NewTasksNotFoundError(missing)
	}
	if len(completed) > 0 {
		return model.NewCompletedTasksError(completed)
	}
	return nil
}

// diffPendingTasks は現在のリストと新しいリストの対称差を返す。
// removedは現在のみに含まれるID、addedは新しいリストのみに含まれるID。
func diffPendingTasks(current, next []string) (removed, added []string) {
	currentSet := make(map[string]bool, len(current))
	for _, id := range current {
		currentSet[id] = true
	}
	nextSet := make(map[string]bool, len(next))
	for _, id := range next {
		nextSet[id] = true
	}

	for _, id := range current {
		if !nextSet[id] {
			removed = append(removed, id)
		}
	}
	for _, id := range next {
		if !currentSet[id] {
			added = append(added, id)
		}
	}
	return removed, added
}
