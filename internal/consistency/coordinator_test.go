package consistency

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/taskman/internal/model"
)

// mockAssignmentWriter は関数フィールドで動作を差し替えるAssignmentWriterのモック。
type mockAssignmentWriter struct {
	setAssignmentFunc   func(ctx context.Context, taskIDs []string, userID, userName string) error
	clearAssignmentFunc func(ctx context.Context, taskIDs []string) error
}

func (m *mockAssignmentWriter) SetAssignment(ctx context.Context, taskIDs []string, userID, userName string) error {
	if m.setAssignmentFunc != nil {
		return m.setAssignmentFunc(ctx, taskIDs, userID, userName)
	}
	return nil
}

func (m *mockAssignmentWriter) ClearAssignment(ctx context.Context, taskIDs []string) error {
	if m.clearAssignmentFunc != nil {
		return m.clearAssignmentFunc(ctx, taskIDs)
	}
	return nil
}

// mockPendingListWriter は関数フィールドで動作を差し替えるPendingListWriterのモック。
type mockPendingListWriter struct {
	addPendingTaskFunc               func(ctx context.Context, userID, taskID string) error
	removePendingTaskFunc            func(ctx context.Context, userID, taskID string) error
	removePendingTasksFromOthersFunc func(ctx context.Context, taskIDs []string, keepUserID string) error
}

func (m *mockPendingListWriter) AddPendingTask(ctx context.Context, userID, taskID string) error {
	if m.addPendingTaskFunc != nil {
		return m.addPendingTaskFunc(ctx, userID, taskID)
	}
	return nil
}

func (m *mockPendingListWriter) RemovePendingTask(ctx context.Context, userID, taskID string) error {
	if m.removePendingTaskFunc != nil {
		return m.removePendingTaskFunc(ctx, userID, taskID)
	}
	return nil
}

func (m *mockPendingListWriter) RemovePendingTasksFromOthers(ctx context.Context, taskIDs []string, keepUserID string) error {
	if m.removePendingTasksFromOthersFunc != nil {
		return m.removePendingTasksFromOthersFunc(ctx, taskIDs, keepUserID)
	}
	return nil
}

// --- TaskCreated のテスト ---

// TestTaskCreated_PendingTask は割り当て済み未完了タスクの作成でpendingTasksに追加されることをテストする。
func TestTaskCreated_PendingTask(t *testing.T) {
	var gotUserID, gotTaskID string
	users := &mockPendingListWriter{
		addPendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			gotUserID = userID
			gotTaskID = taskID
			return nil
		},
	}
	c := NewCoordinator(&mockAssignmentWriter{}, users, nil)

	task := &model.Task{ID: "t1", AssignedUser: "u1", AssignedUserName: "Alice"}
	if err := c.TaskCreated(context.Background(), task); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if gotUserID != "u1" || gotTaskID != "t1" {
		t.Errorf("期待: u1にt1を追加, 結果: user=%s task=%s", gotUserID, gotTaskID)
	}
}

// TestTaskCreated_UnassignedTask は未割り当てタスクの作成で副作用が発生しないことをテストする。
func TestTaskCreated_UnassignedTask(t *testing.T) {
	called := false
	users := &mockPendingListWriter{
		addPendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			called = true
			return nil
		},
	}
	c := NewCoordinator(&mockAssignmentWriter{}, users, nil)

	if err := c.TaskCreated(context.Background(), &model.Task{ID: "t1"}); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if called {
		t.Error("未割り当てタスクではAddPendingTaskを呼ぶべきではない")
	}
}

// TestTaskCreated_CompletedTask は完了済みタスクの作成でpendingTasksに追加されないことをテストする。
func TestTaskCreated_CompletedTask(t *testing.T) {
	called := false
	users := &mockPendingListWriter{
		addPendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			called = true
			return nil
		},
	}
	c := NewCoordinator(&mockAssignmentWriter{}, users, nil)

	task := &model.Task{ID: "t1", AssignedUser: "u1", Completed: true}
	if err := c.TaskCreated(context.Background(), task); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if called {
		t.Error("完了済みタスクではAddPendingTaskを呼ぶべきではない")
	}
}

// TestTaskCreated_WriteFailure は書き込み失敗がエラーとして返ることをテストする。
func TestTaskCreated_WriteFailure(t *testing.T) {
	writeErr := errors.New("db down")
	users := &mockPendingListWriter{
		addPendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			return writeErr
		},
	}
	c := NewCoordinator(&mockAssignmentWriter{}, users, nil)

	task := &model.Task{ID: "t1", AssignedUser: "u1"}
	if err := c.TaskCreated(context.Background(), task); !errors.Is(err, writeErr) {
		t.Errorf("期待: 書き込みエラー, 結果: %v", err)
	}
}

// --- TaskUpdated のテスト ---

// TestTaskUpdated_Reassignment は割り当て先の変更で旧ユーザーから除去され新ユーザーに追加されることをテストする。
func TestTaskUpdated_Reassignment(t *testing.T) {
	var removed, added []string
	users := &mockPendingListWriter{
		removePendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			removed = append(removed, userID+":"+taskID)
			return nil
		},
		addPendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			added = append(added, userID+":"+taskID)
			return nil
		},
	}
	c := NewCoordinator(&mockAssignmentWriter{}, users, nil)

	before := &model.Task{ID: "t1", AssignedUser: "u1"}
	after := &model.Task{ID: "t1", AssignedUser: "u2"}
	if err := c.TaskUpdated(context.Background(), before, after); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if len(removed) != 1 || removed[0] != "u1:t1" {
		t.Errorf("期待: u1からt1を除去, 結果: %v", removed)
	}
	if len(added) != 1 || added[0] != "u2:t1" {
		t.Errorf("期待: u2にt1を追加, 結果: %v", added)
	}
}

// TestTaskUpdated_Completion は未完了から完了への遷移でpendingTasksから除去されることをテストする。
func TestTaskUpdated_Completion(t *testing.T) {
	var removed []string
	added := false
	users := &mockPendingListWriter{
		removePendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			removed = append(removed, userID+":"+taskID)
			return nil
		},
		addPendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			added = true
			return nil
		},
	}
	c := NewCoordinator(&mockAssignmentWriter{}, users, nil)

	before := &model.Task{ID: "t1", AssignedUser: "u1"}
	after := &model.Task{ID: "t1", AssignedUser: "u1", Completed: true}
	if err := c.TaskUpdated(context.Background(), before, after); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if len(removed) != 1 || removed[0] != "u1:t1" {
		t.Errorf("期待: u1からt1を除去, 結果: %v", removed)
	}
	if added {
		t.Error("完了タスクはpendingTasksに追加されるべきではない")
	}
}

// TestTaskUpdated_Unassignment は割り当て解除で旧ユーザーから除去のみ行われることをテストする。
func TestTaskUpdated_Unassignment(t *testing.T) {
	var removed []string
	added := false
	users := &mockPendingListWriter{
		removePendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			removed = append(removed, userID+":"+taskID)
			return nil
		},
		addPendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			added = true
			return nil
		},
	}
	c := NewCoordinator(&mockAssignmentWriter{}, users, nil)

	before := &model.Task{ID: "t1", AssignedUser: "u1"}
	after := &model.Task{ID: "t1"}
	if err := c.TaskUpdated(context.Background(), before, after); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if len(removed) != 1 || removed[0] != "u1:t1" {
		t.Errorf("期待: u1からt1を除去, 結果: %v", removed)
	}
	if added {
		t.Error("未割り当てになったタスクは追加されるべきではない")
	}
}

// TestTaskUpdated_PartialFailureContinues は副作用の一部が失敗しても残りが実行されることをテストする。
func TestTaskUpdated_PartialFailureContinues(t *testing.T) {
	removeErr := errors.New("remove failed")
	added := false
	users := &mockPendingListWriter{
		removePendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			return removeErr
		},
		addPendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			added = true
			return nil
		},
	}
	c := NewCoordinator(&mockAssignmentWriter{}, users, nil)

	before := &model.Task{ID: "t1", AssignedUser: "u1"}
	after := &model.Task{ID: "t1", AssignedUser: "u2"}
	err := c.TaskUpdated(context.Background(), before, after)

	if !errors.Is(err, removeErr) {
		t.Errorf("期待: 除去エラーを含む, 結果: %v", err)
	}
	if !added {
		t.Error("除去が失敗しても追加は実行されるべき")
	}
}

// TestTaskUpdated_NoChanges は割り当ても完了状態も変わらない完了済みタスクで副作用がないことをテストする。
func TestTaskUpdated_NoChanges(t *testing.T) {
	touched := false
	users := &mockPendingListWriter{
		removePendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			touched = true
			return nil
		},
		addPendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			touched = true
			return nil
		},
	}
	c := NewCoordinator(&mockAssignmentWriter{}, users, nil)

	before := &model.Task{ID: "t1", AssignedUser: "u1", Completed: true}
	after := &model.Task{ID: "t1", AssignedUser: "u1", Completed: true}
	if err := c.TaskUpdated(context.Background(), before, after); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if touched {
		t.Error("変化のない完了済みタスクでは副作用が発生するべきではない")
	}
}

// --- TaskDeleted のテスト ---

// TestTaskDeleted_AssignedTask は割り当て済みタスクの削除でpendingTasksから除去されることをテストする。
func TestTaskDeleted_AssignedTask(t *testing.T) {
	var gotUserID, gotTaskID string
	users := &mockPendingListWriter{
		removePendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			gotUserID = userID
			gotTaskID = taskID
			return nil
		},
	}
	c := NewCoordinator(&mockAssignmentWriter{}, users, nil)

	task := &model.Task{ID: "t1", AssignedUser: "u1"}
	if err := c.TaskDeleted(context.Background(), task); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if gotUserID != "u1" || gotTaskID != "t1" {
		t.Errorf("期待: u1からt1を除去, 結果: user=%s task=%s", gotUserID, gotTaskID)
	}
}

// TestTaskDeleted_UnassignedTask は未割り当てタスクの削除で副作用がないことをテストする。
func TestTaskDeleted_UnassignedTask(t *testing.T) {
	called := false
	users := &mockPendingListWriter{
		removePendingTaskFunc: func(ctx context.Context, userID, taskID string) error {
			called = true
			return nil
		},
	}
	c := NewCoordinator(&mockAssignmentWriter{}, users, nil)

	if err := c.TaskDeleted(context.Background(), &model.Task{ID: "t1"}); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if called {
		t.Error("未割り当てタスクの削除で除去を呼ぶべきではない")
	}
}

// --- AttachTasks / DetachTasks のテスト ---

// TestAttachTasks はタスク側の割り当てがユーザーのID/名前で設定されることをテストする。
func TestAttachTasks(t *testing.T) {
	var gotIDs []string
	var gotUserID, gotUserName string
	tasks := &mockAssignmentWriter{
		setAssignmentFunc: func(ctx context.Context, taskIDs []string, userID, userName string) error {
			gotIDs = taskIDs
			gotUserID = userID
			gotUserName = userName
			return nil
		},
	}
	c := NewCoordinator(tasks, &mockPendingListWriter{}, nil)

	user := &model.User{ID: "u1", Name: "Alice"}
	if err := c.AttachTasks(context.Background(), user, []string{"t1", "t2"}); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if len(gotIDs) != 2 || gotUserID != "u1" || gotUserName != "Alice" {
		t.Errorf("期待: t1/t2をu1(Alice)に割り当て, 結果: ids=%v user=%s name=%s", gotIDs, gotUserID, gotUserName)
	}
}

// TestAttachTasks_EmptyList は空のタスクリストで書き込みが発生しないことをテストする。
func TestAttachTasks_EmptyList(t *testing.T) {
	called := false
	tasks := &mockAssignmentWriter{
		setAssignmentFunc: func(ctx context.Context, taskIDs []string, userID, userName string) error {
			called = true
			return nil
		},
	}
	c := NewCoordinator(tasks, &mockPendingListWriter{}, nil)

	if err := c.AttachTasks(context.Background(), &model.User{ID: "u1"}, nil); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if called {
		t.Error("空リストではSetAssignmentを呼ぶべきではない")
	}
}

// TestDetachTasks はタスク側の割り当て解除が行われることをテストする。
func TestDetachTasks(t *testing.T) {
	var gotIDs []string
	tasks := &mockAssignmentWriter{
		clearAssignmentFunc: func(ctx context.Context, taskIDs []string) error {
			gotIDs = taskIDs
			return nil
		},
	}
	c := NewCoordinator(tasks, &mockPendingListWriter{}, nil)

	if err := c.DetachTasks(context.Background(), []string{"t1"}); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if len(gotIDs) != 1 || gotIDs[0] != "t1" {
		t.Errorf("期待: t1の割り当て解除, 結果: %v", gotIDs)
	}
}

// --- ClaimTasks のテスト ---

// TestClaimTasks は他ユーザーからの除去後にタスク側の割り当てが設定されることをテストする。
func TestClaimTasks(t *testing.T) {
	order := []string{}
	users := &mockPendingListWriter{
		removePendingTasksFromOthersFunc: func(ctx context.Context, taskIDs []string, keepUserID string) error {
			if keepUserID != "u1" {
				t.Errorf("期待keepUserID: u1, 結果: %s", keepUserID)
			}
			order = append(order, "strip")
			return nil
		},
	}
	tasks := &mockAssignmentWriter{
		setAssignmentFunc: func(ctx context.Context, taskIDs []string, userID, userName string) error {
			order = append(order, "attach")
			return nil
		},
	}
	c := NewCoordinator(tasks, users, nil)

	user := &model.User{ID: "u1", Name: "Alice"}
	if err := c.ClaimTasks(context.Background(), user, []string{"t1"}); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if len(order) != 2 || order[0] != "strip" || order[1] != "attach" {
		t.Errorf("期待: 除去→割り当ての順, 結果: %v", order)
	}
}

// TestClaimTasks_StripFailureAborts は他ユーザーからの除去に失敗すると割り当てを行わないことをテストする。
func TestClaimTasks_StripFailureAborts(t *testing.T) {
	stripErr := errors.New("strip failed")
	users := &mockPendingListWriter{
		removePendingTasksFromOthersFunc: func(ctx context.Context, taskIDs []string, keepUserID string) error {
			return stripErr
		},
	}
	attached := false
	tasks := &mockAssignmentWriter{
		setAssignmentFunc: func(ctx context.Context, taskIDs []string, userID, userName string) error {
			attached = true
			return nil
		},
	}
	c := NewCoordinator(tasks, users, nil)

	err := c.ClaimTasks(context.Background(), &model.User{ID: "u1"}, []string{"t1"})
	if !errors.Is(err, stripErr) {
		t.Errorf("期待: 除去エラー, 結果: %v", err)
	}
	if attached {
		t.Error("除去失敗後はSetAssignmentを呼ぶべきではない")
	}
}
