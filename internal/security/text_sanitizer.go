// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はステータスページ由来のHTML断片からマークアップを除去し、
// インシデント要約として表示できるプレーンテキストに変換する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はHTMLからプレーンテキストを得るためのインターフェース。
type TextSanitizerService interface {
	// PlainText は全タグを除去し、エンティティを復元し、連続する空白を1つに畳んだ文字列を返す。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す。
	PlainText(rawHTML string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// script / style 要素は中身ごと除去される。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// PlainText はHTML断片をプレーンテキストに変換する。
func (s *textSanitizer) PlainText(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	// タグ境界で単語が連結しないよう、除去前に空白を補う
	spaced := strings.ReplaceAll(rawHTML, "<", " <")
	stripped := s.policy.Sanitize(spaced)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}
