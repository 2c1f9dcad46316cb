// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は求人プロバイダから取り込んだテキスト項目（タイトル、会社名、勤務地）から
// HTMLマークアップを除去する。求人APIはタイトルにタグやエンティティを含めることがあるため、
// ローカル状態とリモートリソースにはプレーンテキストのみを保持する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はテキスト項目のサニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize は全てのタグを除去し、エンティティをデコードしたプレーンテキストを返す。
	// 連続する空白は1つにまとめ、前後の空白は取り除く。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// タグを一切許可しないStrictPolicyを使用する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses はエンティティのデコードとタグ除去を繰り返す上限回数。
const maxSanitizePasses = 8

// Sanitize はHTMLを除去したプレーンテキストを返す。
// デコードによってタグが現れた場合は再度除去し、出力が変わらなくなるまで繰り返す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	current := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := s.pass(current)
		if next == current {
			return next
		}
		current = next
	}
	// 上限までに収束しない場合はエスケープされたままの出力を返す
	return collapseSpaces(s.policy.Sanitize(current))
}

// pass はタグを除去し、bluemondayがエスケープしたエンティティをデコードする。
func (s *textSanitizer) pass(text string) string {
	return collapseSpaces(html.UnescapeString(s.policy.Sanitize(text)))
}

func collapseSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
