package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/query"
)

// taskSelectColumns はタスクのSELECT句に並べるカラム一覧。
const taskSelectColumns = "id, name, description, deadline, completed, assigned_user, assigned_user_name"

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// List はクエリ記述子に一致するタスク一覧を取得する。
func (r *PostgresTaskRepo) List(ctx context.Context, d *query.Descriptor) ([]*model.Task, error) {
	suffix, args, err := buildListSuffix(d, taskColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to build task query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+taskSelectColumns+" FROM tasks"+suffix, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// Count はフィルタ条件に一致するタスク数を返す。
func (r *PostgresTaskRepo) Count(ctx context.Context, conds []query.Condition) (int, error) {
	clause, args, err := buildWhereClause(conds, taskColumns, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to build task count query: %w", err)
	}

	var count int
	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+clause, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+taskSelectColumns+" FROM tasks WHERE id = $1", id)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task by ID: %w", err)
	}
	return task, nil
}

// FindByIDs は指定ID群のタスクを取得する。見つからないIDは結果に含まれない。
func (r *PostgresTaskRepo) FindByIDs(ctx context.Context, ids []string) ([]*model.Task, error) {
	if len(ids) == 0 {
		return []*model.Task{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+taskSelectColumns+" FROM tasks WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks by IDs: %w", err)
	}
	defer rows.Close()

	tasks := []*model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, name, description, deadline, completed, assigned_user, assigned_user_name)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.Name, task.Description, task.Deadline, task.Completed,
		task.AssignedUser, task.AssignedUserName,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Update はタスクの全フィールドを置き換える。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET name = $2, description = $3, deadline = $4, completed = $5,
		     assigned_user = $6, assigned_user_name = $7
		 WHERE id = $1`,
		task.ID, task.Name, task.Description, task.Deadline, task.Completed,
		task.AssignedUser, task.AssignedUserName,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found: %s", task.ID)
	}
	return nil
}

// Delete は指定IDのタスクを削除する。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// SetAssignment は指定タスク群のassignedUser/assignedUserNameを設定する。
func (r *PostgresTaskRepo) SetAssignment(ctx context.Context, taskIDs []string, userID, userName string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET assigned_user = $1, assigned_user_name = $2 WHERE id = ANY($3)`,
		userID, userName, pq.Array(taskIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to set task assignment: %w", err)
	}
	return nil
}

// ClearAssignment は指定タスク群の割り当てを解除する。
func (r *PostgresTaskRepo) ClearAssignment(ctx context.Context, taskIDs []string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET assigned_user = '', assigned_user_name = $1 WHERE id = ANY($2)`,
		model.UnassignedName, pq.Array(taskIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to clear task assignment: %w", err)
	}
	return nil
}

// scanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type scanner interface {
	Scan(dest ...any) error
}

// scanTask は1行をTaskに読み取る。
func scanTask(s scanner) (*model.Task, error) {
	task := &model.Task{}
	err := s.Scan(
		&task.ID, &task.Name, &task.Description, &task.Deadline,
		&task.Completed, &task.AssignedUser, &task.AssignedUserName,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	return task, nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
