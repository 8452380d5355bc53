package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/query"
	"github.com/hitoshi/taskman/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// List はクエリ記述子に一致するユーザー一覧を返す。
	List(ctx context.Context, d *query.Descriptor) ([]*model.User, error)
	// Count はフィルタ条件に一致するユーザー数を返す。
	Count(ctx context.Context, conds []query.Condition) (int, error)
	// Get は指定IDのユーザーを返す。
	Get(ctx context.Context, id string) (*model.User, error)
	// Create はユーザーを作成する。
	Create(ctx context.Context, in user.Input) (*model.User, error)
	// Update は指定IDのユーザーを全置換する。
	Update(ctx context.Context, id string, in user.Input) (*model.User, error)
	// Delete は指定IDのユーザーを削除する。
	Delete(ctx context.Context, id string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// userPayload はユーザーの作成・置換リクエストのボディ。
type userPayload struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	PendingTasks []string `json:"pendingTasks"`
}

// toInput はリクエストボディをサービス入力に変換する。
// dateCreatedはクライアントから受け付けない。
func (p *userPayload) toInput() user.Input {
	return user.Input{
		Name:         p.Name,
		Email:        p.Email,
		PendingTasks: p.PendingTasks,
	}
}

// List はユーザー一覧またはユーザー数を取得する。
// GET /api/users?where=...&sort=...&select|filter=...&skip=...&limit=...&count=...
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	d, err := query.ParseListQuery(r.URL.Query(), query.UserOptions())
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

	users, err := h.service.List(r.Context(), d)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	docs := make([]map[string]any, len(users))
	for i, u := range users {
		docs[i] = userDocument(u, d.Projection)
	}
	writeEnvelope(w, http.StatusOK, "OK", docs)
}

// Get は指定IDのユーザーを取得する。
// GET /api/users/:id?select|filter=...
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	// selectが無い場合はレガシー別名filterを参照する
	proj, err := parseSingleProjection(r, query.UserOptions(), "select", "filter")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	u, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "OK", userDocument(u, proj))
}

// Create はユーザーを作成する。
// POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload userPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		handleServiceError(w, model.NewInvalidBodyError())
		return
	}

	u, err := h.service.Create(r.Context(), payload.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeEnvelope(w, http.StatusCreated, "Created", userDocument(u, nil))
}

// Update は指定IDのユーザーを全置換する。
// PUT /api/users/:id
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload userPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		handleServiceError(w, model.NewInvalidBodyError())
		return
	}

	u, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), payload.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "OK", userDocument(u, nil))
}

// Delete は指定IDのユーザーを削除する。
// DELETE /api/users/:id
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
