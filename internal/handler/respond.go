// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/query"
)

// envelope は全ての非204レスポンスの統一フォーマット。
type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// writeEnvelope は統一フォーマットでレスポンスを書き込む。
func writeEnvelope(w http.ResponseWriter, statusCode int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(envelope{Message: message, Data: data})
}

// writeErrorResponse はAPIErrorを統一フォーマットで書き込む。
// メッセージにはエラーメッセージ、dataには補足情報（対象ID一覧など）が入る。
func writeErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeEnvelope(w, statusCode, apiErr.Message, apiErr.Detail)
}

// handleServiceError はサービス層のエラーをHTTPレスポンスにマッピングする。
// APIError以外のエラーは内部サーバーエラーとして扱い、
// 診断のため元エラー文字列をdataに入れて返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeErrorResponse(w, mapCategoryToHTTPStatus(apiErr.Category), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	writeEnvelope(w, http.StatusInternalServerError, "unexpected server error", err.Error())
}

// mapCategoryToHTTPStatus はエラーカテゴリからHTTPステータスコードにマッピングする。
// 重複メールは論理的には競合だが、この外部仕様では400を返す。
func mapCategoryToHTTPStatus(category string) int {
	switch category {
	case model.CategoryValidation:
		return http.StatusBadRequest
	case model.CategoryConflict:
		return http.StatusBadRequest
	case model.CategoryNotFound:
		return http.StatusNotFound
	case model.CategoryStorage:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// taskDocument はTaskをJSONドキュメントに変換し、射影を適用する。
// deadlineはエポックミリ秒で表現する。
func taskDocument(t *model.Task, proj *query.Projection) map[string]any {
	doc := map[string]any{
		"id":               t.ID,
		"name":             t.Name,
		"description":      t.Description,
		"deadline":         t.Deadline.UnixMilli(),
		"completed":        t.Completed,
		"assignedUser":     t.AssignedUser,
		"assignedUserName": t.AssignedUserName,
	}
	return applyProjection(doc, proj)
}

// userDocument はUserをJSONドキュメントに変換し、射影を適用する。
// dateCreatedはサーバー生成値のためRFC3339で表現する。
func userDocument(u *model.User, proj *query.Projection) map[string]any {
	pending := u.PendingTasks
	if pending == nil {
		pending = []string{}
	}
	doc := map[string]any{
		"id":           u.ID,
		"name":         u.Name,
		"email":        u.Email,
		"pendingTasks": pending,
		"dateCreated":  u.DateCreated.UTC().Format(time.RFC3339),
	}
	return applyProjection(doc, proj)
}

// applyProjection はドキュメントに射影を適用する。
// ドキュメントストアの射影セマンティクスに従い、包含射影でもidは
// 明示的に除外されない限り含まれる。
func applyProjection(doc map[string]any, proj *query.Projection) map[string]any {
	if proj == nil {
		return doc
	}

	out := make(map[string]any, len(doc))
	if proj.Include {
		for field := range proj.Fields {
			if v, ok := doc[field]; ok {
				out[field] = v
			}
		}
	} else {
		for field, v := range doc {
			if !proj.Fields[field] {
				out[field] = v
			}
		}
	}

	if proj.WithID {
		out["id"] = doc["id"]
	} else {
		delete(out, "id")
	}

	return out
}
