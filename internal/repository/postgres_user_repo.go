package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/query"
)

// userSelectColumns はユーザーのSELECT句に並べるカラム一覧。
const userSelectColumns = "id, name, email, pending_tasks, date_created"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// List はクエリ記述子に一致するユーザー一覧を取得する。
func (r *PostgresUserRepo) List(ctx context.Context, d *query.Descriptor) ([]*model.User, error) {
	suffix, args, err := buildListSuffix(d, userColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userSelectColumns+" FROM users"+suffix, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// Count はフィルタ条件に一致するユーザー数を返す。
func (r *PostgresUserRepo) Count(ctx context.Context, conds []query.Condition) (int, error) {
	clause, args, err := buildWhereClause(conds, userColumns, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to build user count query: %w", err)
	}

	var count int
	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+clause, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userSelectColumns+" FROM users WHERE id = $1", id)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userSelectColumns+" FROM users WHERE email = $1", email)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, pending_tasks, date_created)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Name, user.Email, pq.Array(user.PendingTasks), user.DateCreated,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update はユーザーのname/email/pendingTasksを置き換える。dateCreatedは変更しない。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $2, email = $3, pending_tasks = $4 WHERE id = $1`,
		user.ID, user.Name, user.Email, pq.Array(user.PendingTasks),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	return nil
}

// Delete は指定IDのユーザーを削除する。
func (r *PostgresUserRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// AddPendingTask はユーザーのpendingTasksにタスクIDを追加する。
// すでに含まれている場合は何もしない（冪等）。1文の原子的更新として発行する。
func (r *PostgresUserRepo) AddPendingTask(ctx context.Context, userID, taskID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET pending_tasks = array_append(pending_tasks, $2)
		 WHERE id = $1 AND NOT ($2 = ANY(pending_tasks))`,
		userID, taskID,
	)
	if err != nil {
		return fmt.Errorf("failed to add pending task: %w", err)
	}
	return nil
}

// RemovePendingTask はユーザーのpendingTasksからタスクIDを取り除く。
func (r *PostgresUserRepo) RemovePendingTask(ctx context.Context, userID, taskID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET pending_tasks = array_remove(pending_tasks, $2) WHERE id = $1`,
		userID, taskID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove pending task: %w", err)
	}
	return nil
}

// RemovePendingTasksFromOthers は指定ユーザー以外の全ユーザーのpendingTasksから
// 指定タスクID群を取り除く。対象タスクを含むユーザー行のみ更新する。
func (r *PostgresUserRepo) RemovePendingTasksFromOthers(ctx context.Context, taskIDs []string, keepUserID string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET pending_tasks = (
		     SELECT COALESCE(array_agg(t), '{}'::text[])
		     FROM unnest(pending_tasks) AS t
		     WHERE NOT (t = ANY($1))
		 )
		 WHERE id <> $2 AND pending_tasks && $1`,
		pq.Array(taskIDs), keepUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove pending tasks from other users: %w", err)
	}
	return nil
}

// scanUser は1行をUserに読み取る。
func scanUser(s scanner) (*model.User, error) {
	user := &model.User{}
	err := s.Scan(
		&user.ID, &user.Name, &user.Email,
		pq.Array(&user.PendingTasks), &user.DateCreated,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
