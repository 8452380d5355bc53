package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/query"
	"github.com/hitoshi/taskman/internal/task"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	// List はクエリ記述子に一致するタスク一覧を返す。
	List(ctx context.Context, d *query.Descriptor) ([]*model.Task, error)
	// Count はフィルタ条件に一致するタスク数を返す。
	Count(ctx context.Context, conds []query.Condition) (int, error)
	// Get は指定IDのタスクを返す。
	Get(ctx context.Context, id string) (*model.Task, error)
	// Create はタスクを作成する。
	Create(ctx context.Context, in task.Input) (*model.Task, error)
	// Update は指定IDのタスクを全置換する。
	Update(ctx context.Context, id string, in task.Input) (*model.Task, error)
	// Delete は指定IDのタスクを削除する。
	Delete(ctx context.Context, id string) error
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

// taskPayload はタスクの作成・置換リクエストのボディ。
// completedはbool以外に文字列"true"も受け付けるためanyで受ける。
type taskPayload struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Deadline         *int64 `json:"deadline"`
	Completed        any    `json:"completed"`
	AssignedUser     string `json:"assignedUser"`
	AssignedUserName string `json:"assignedUserName"`
}

// toInput はリクエストボディをサービス入力に変換する。
func (p *taskPayload) toInput() task.Input {
	return task.Input{
		Name:             p.Name,
		Description:      p.Description,
		Deadline:         p.Deadline,
		Completed:        coerceCompleted(p.Completed),
		AssignedUser:     p.AssignedUser,
		AssignedUserName: p.AssignedUserName,
	}
}

// coerceCompleted はcompletedフィールドを真偽値に強制変換する。
// boolまたは文字列リテラル"true"のみ真となり、それ以外はすべて偽。
func coerceCompleted(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	}
	return false
}

// List はタスク一覧またはタスク数を取得する。
// GET /api/tasks?where=...&sort=...&select=...&skip=...&limit=...&count=...
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	d, err := query.ParseListQuery(r.URL.Query(), query.TaskOptions())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if d.WantCount {
		count, err := h.service.Count(r.Context(), d.Conditions)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeEnvelope(w, http.StatusOK, "OK", count)
		return
	}

	tasks, err := h.service.List(r.Context(), d)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	docs := make([]map[string]any, len(tasks))
	for i, t := range tasks {
		docs[i] = taskDocument(t, d.Projection)
	}
	writeEnvelope(w, http.StatusOK, "OK", docs)
}

// Get は指定IDのタスクを取得する。
// GET /api/tasks/:id?select=...
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	proj, err := parseSingleProjection(r, query.TaskOptions(), "select")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	t, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "OK", taskDocument(t, proj))
}

// Create はタスクを作成する。
// POST /api/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		handleServiceError(w, model.NewInvalidBodyError())
		return
	}

	t, err := h.service.Create(r.Context(), payload.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeEnvelope(w, http.StatusCreated, "Created", taskDocument(t, nil))
}

// Update は指定IDのタスクを全置換する。
// PUT /api/tasks/:id
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		handleServiceError(w, model.NewInvalidBodyError())
		return
	}

	t, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), payload.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "OK", taskDocument(t, nil))
}

// Delete は指定IDのタスクを削除する。
// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseSingleProjection は単一取得エンドポイントの射影パラメータを解析する。
// paramsに列挙された名前を順に参照し、最初に見つかった値を使用する。
func parseSingleProjection(r *http.Request, opts query.Options, params ...string) (*query.Projection, error) {
	for _, name := range params {
		if raw := r.URL.Query().Get(name); raw != "" {
			return query.ParseProjection(raw, opts)
		}
	}
	return nil, nil
}
