// Package model はドメインモデルを定義する。
package model

import "time"

// UnassignedName は未割り当てタスクのassignedUserNameに入る固定値。
const UnassignedName = "unassigned"

// Task は管理対象のタスクを表す。
// AssignedUserが空文字列の場合は未割り当てを意味する。
type Task struct {
	ID               string
	Name             string
	Description      string
	Deadline         time.Time
	Completed        bool
	AssignedUser     string
	AssignedUserName string
}

// IsAssigned はタスクがユーザーに割り当てられているかを返す。
func (t *Task) IsAssigned() bool {
	return t.AssignedUser != ""
}

// IsPending はタスクが「保留中」（割り当て済みかつ未完了）かを返す。
// ユーザーのpendingTasksに含まれるべき条件と一致する。
func (t *Task) IsPending() bool {
	return t.IsAssigned() && !t.Completed
}
