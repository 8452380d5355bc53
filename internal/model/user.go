// Package model はドメインモデルを定義する。
package model

import "time"

// User はタスクの割り当て先となるユーザーを表す。
// PendingTasksには割り当て済みかつ未完了のタスクIDが入る。
// 順序に意味はないがスライスとして保持する。
type User struct {
	ID           string
	Name         string
	Email        string
	PendingTasks []string
	DateCreated  time.Time
}

// HasPendingTask は指定タスクIDがpendingTasksに含まれるかを返す。
func (u *User) HasPendingTask(taskID string) bool {
	for _, id := range u.PendingTasks {
		if id == taskID {
			return true
		}
	}
	return false
}
