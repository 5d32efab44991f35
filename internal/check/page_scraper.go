package check

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/statuswatch/internal/model"
)

const pageAccept = "text/html, application/xhtml+xml, */*"

// invisibleSelector は可視テキストに含めない要素。
const invisibleSelector = "script, style, noscript, template, head"

// PageScraper はステータスページのHTMLを取得し、可視テキストを抽出する。
// インシデントの構造化抽出は行わない。
type PageScraper struct {
	ssrfGuard   SSRFValidator
	timeout     time.Duration
	maxBodySize int64
}

// NewPageScraper はPageScraperを生成する。
func NewPageScraper(ssrfGuard SSRFValidator, timeout time.Duration, maxBodySize int64) *PageScraper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &PageScraper{
		ssrfGuard:   ssrfGuard,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch はページを取得し、小文字化した可視テキストを返す。
func (s *PageScraper) Fetch(ctx context.Context, pageURL string) (string, error) {
	body, _, err := fetchBody(ctx, s.ssrfGuard, pageURL, pageAccept, s.timeout, s.maxBodySize)
	if err != nil {
		return "", err
	}

	text, err := VisibleText(body)
	if err != nil {
		return "", model.NewParseError(pageURL, err)
	}
	return text, nil
}

// VisibleText はHTMLからscript/style等を除いた本文テキストを小文字化して返す。
// 連続する空白は1つに畳む。
func VisibleText(htmlBody []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBody))
	if err != nil {
		return "", err
	}

	doc.Find(invisibleSelector).Remove()

	// ブロック要素の境界で単語が連結しないよう、各テキストノードを空白区切りで集める
	var b strings.Builder
	doc.Find("body").Contents().Each(func(_ int, sel *goquery.Selection) {
		b.WriteString(" ")
		b.WriteString(textOf(sel))
	})
	text := b.String()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	return strings.ToLower(strings.Join(strings.Fields(text), " ")), nil
}

// textOf は選択範囲配下のテキストノードを空白区切りで連結する。
func textOf(sel *goquery.Selection) string {
	if goquery.NodeName(sel) == "#text" {
		return sel.Text()
	}
	parts := make([]string, 0)
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		parts = append(parts, textOf(child))
	})
	return strings.Join(parts, " ")
}
