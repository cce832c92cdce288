package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/calendar"
)

var (
	errBadRequestBody   = errors.New("無効なリクエスト形式です。")
	errInvalidBookingID = errors.New("無効な予約 ID です。")
	errInvalidRoomID    = errors.New("無効な会議室 ID です。")
	errInvalidCategory  = errors.New("無効なカテゴリ ID です。")
	errInvalidDate      = errors.New("日付は YYYY-MM-DD 形式で指定してください。")
	errInvalidView      = errors.New("表示形式は daily、weekly、monthly のいずれかを指定してください。")
	errInvalidFilter    = errors.New("状態フィルタは all、upcoming、past のいずれかを指定してください。")
	errInvalidSlotQuery = errors.New("時間枠の指定が正しくありません。")
	errStreamingAbsent  = errors.New("ストリーミングに対応していません。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   localizedStatusMessage(http.StatusUnprocessableEntity),
			Errors:    localizeValidationErrors(vErr),
		})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   localizedStatusMessage(http.StatusForbidden),
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: localizedStatusMessage(http.StatusNotFound)})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "BOOKING_CONFLICT",
			Message:   "指定された時間帯はすでに予約されています。",
		})
	case errors.Is(err, application.ErrInvalidTransition):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "INVALID_TRANSITION",
			Message:   "この予約の状態は変更できません。",
		})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: localizedStatusMessage(http.StatusConflict)})
	case errors.Is(err, calendar.ErrUnknownView), errors.Is(err, calendar.ErrUnknownFilter):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Message: localizedStatusMessage(http.StatusBadRequest)})
	default:
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: localizedStatusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "title is required":
		return "タイトルは必須です。"
	case "room is required":
		return "会議室を選択してください。"
	case "room does not exist":
		return "指定された会議室は存在しません。"
	case "room is not available for booking":
		return "指定された会議室は現在予約できません。"
	case "start and end dates are required":
		return "開始日と終了日は必須です。"
	case "end date must not be before start date":
		return "終了日は開始日以降を指定してください。"
	case "start and end times must be HH:MM":
		return "時刻は HH:MM 形式で指定してください。"
	case "end time must be after start time":
		return "終了時刻は開始時刻より後である必要があります。"
	case "unknown repeat kind":
		return "繰り返しの種類が正しくありません。"
	case "recurrence rule is required for custom repetition":
		return "カスタム繰り返しには繰り返しルールが必要です。"
	case "recurrence rule is invalid":
		return "繰り返しルールの形式が正しくありません。"
	case "recurrence end date is required":
		return "繰り返しの終了日は必須です。"
	case "recurrence end date must not be before the start date":
		return "繰り返しの終了日は開始日以降を指定してください。"
	case "recurrence produces no occurrences":
		return "繰り返しの条件に該当する日時がありません。"
	case "name is required":
		return "名称は必須です。"
	case "capacity must be positive":
		return "収容人数は正の整数で指定してください。"
	case "category does not exist":
		return "指定されたカテゴリは存在しません。"
	case "a category with this name already exists":
		return "同じ名前のカテゴリがすでに存在します。"
	default:
		if rest, ok := strings.CutPrefix(message, "invalid email addresses:"); ok {
			return "無効なメールアドレスが含まれています: " + strings.TrimSpace(rest)
		}
		if last, ok := strings.CutPrefix(message, "recurrence end date must not be after "); ok {
			return "繰り返しの終了日は " + last + " 以前を指定してください。"
		}
		if strings.HasPrefix(message, "title must be at most") {
			return fmt.Sprintf("タイトルは %d 文字以内で入力してください。", application.MaxTitleLength)
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
