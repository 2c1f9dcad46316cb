// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示するメッセージと原因カテゴリ、対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // ユーザー向けエラーメッセージ
	Category string // カテゴリ: auth, validation, remote, system
	Action   string // ユーザー向け対処方法
	Status   int    // リモートが返したHTTPステータス（該当しない場合は0）
	Err      error  // 原因となったエラー
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeRemoteStatus       = "REMOTE_STATUS"
	ErrCodeNetwork            = "NETWORK_ERROR"
	ErrCodeInvalidPayload     = "INVALID_PAYLOAD"
	ErrCodeInvalidFavorite    = "INVALID_FAVORITE"
)

// MessageOf はエラーからユーザー向けメッセージを取り出す。
// APIErrorであればそのMessage、それ以外はerr.Error()を返し、
// どちらも空の場合はfallbackを返す。
func MessageOf(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}

// NewUnauthenticatedError はログインしていない、またはセッションのユーザーと
// 操作対象のユーザーが一致しない場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "お気に入りを追加するにはログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewInvalidCredentialsError はログイン情報が一致しない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewRemoteStatusError はリモートAPIが2xx以外のステータスを返した場合のエラーを生成する。
// メッセージはステータスコードから決定する。
func NewRemoteStatusError(status int, body string) *APIError {
	e := &APIError{
		Code:     ErrCodeRemoteStatus,
		Category: "remote",
		Status:   status,
		Action:   "しばらく待ってから再度お試しください。",
	}
	if body != "" {
		e.Err = fmt.Errorf("status %d: %s", status, body)
	} else {
		e.Err = fmt.Errorf("status %d", status)
	}

	switch status {
	case 401:
		e.Message = "認証に失敗しました。"
		e.Category = "auth"
		e.Action = "ログインし直してください。"
	case 403:
		e.Message = "アクセスが拒否されました。"
		e.Category = "auth"
		e.Action = "操作の権限を確認してください。"
	case 404:
		e.Message = "リソースが見つかりません。"
		e.Action = "一覧を再読み込みしてください。"
	case 429:
		e.Message = "リクエスト数の上限に達しました。しばらくしてから再試行してください。"
	case 500:
		e.Message = "サーバー内部エラーが発生しました。"
	default:
		e.Message = "予期しないエラーが発生しました。"
	}
	return e
}

// NewNetworkError はリモートAPIへの通信自体に失敗した場合のエラーを生成する。
func NewNetworkError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeNetwork,
		Message:  "サーバーに接続できませんでした。",
		Category: "remote",
		Action:   "ネットワーク接続とAPIのURL設定を確認してください。",
		Err:      err,
	}
}

// NewInvalidPayloadError はリモートAPIの応答を解釈できない場合のエラーを生成する。
func NewInvalidPayloadError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPayload,
		Message:  fmt.Sprintf("サーバーの応答を解釈できませんでした: %s", reason),
		Category: "system",
		Action:   "APIのバージョンを確認してください。",
	}
}

// NewInvalidFavoriteError はお気に入りの内容が不正な場合のエラーを生成する。
func NewInvalidFavoriteError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFavorite,
		Message:  fmt.Sprintf("お気に入りの内容が不正です: %s", reason),
		Category: "validation",
		Action:   "求人情報を確認してください。",
	}
}
