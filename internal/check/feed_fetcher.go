package check

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/statuswatch/internal/model"
)

const feedAccept = "application/rss+xml, application/atom+xml, application/xml, text/xml, */*"

// PlainTexter はHTML断片をプレーンテキストに変換するインターフェース。
// security.TextSanitizerServiceを抽象化する。
type PlainTexter interface {
	PlainText(rawHTML string) string
}

// FeedFetcher はステータスページのRSS/Atomフィードを取得・パースする。
type FeedFetcher struct {
	ssrfGuard   SSRFValidator
	sanitizer   PlainTexter
	timeout     time.Duration
	maxBodySize int64
}

// NewFeedFetcher はFeedFetcherを生成する。
// timeout / maxBodySize が0以下の場合はデフォルト値を使用する。
func NewFeedFetcher(ssrfGuard SSRFValidator, sanitizer PlainTexter, timeout time.Duration, maxBodySize int64) *FeedFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &FeedFetcher{
		ssrfGuard:   ssrfGuard,
		sanitizer:   sanitizer,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch はフィードを取得し、フィード本来の順序でFeedItemを返す。
// 失敗時は *model.FetchError（network / parse）を返す。
func (f *FeedFetcher) Fetch(ctx context.Context, feedURL string) ([]model.FeedItem, error) {
	body, _, err := fetchBody(ctx, f.ssrfGuard, feedURL, feedAccept, f.timeout, f.maxBodySize)
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, model.NewParseError(feedURL, err)
	}
	if parsed == nil {
		return nil, model.NewParseError(feedURL, errors.New("empty feed"))
	}

	return f.convertItems(parsed.Items), nil
}

// convertItems はgofeedの記事をmodel.FeedItemに変換する。
func (f *FeedFetcher) convertItems(items []*gofeed.Item) []model.FeedItem {
	converted := make([]model.FeedItem, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		fi := model.FeedItem{
			Title:    item.Title,
			BodyText: item.Content,
		}

		// Contentが空の場合はDescriptionを使用
		if fi.BodyText == "" {
			fi.BodyText = item.Description
		}

		snippetSource := item.Description
		if snippetSource == "" {
			snippetSource = item.Content
		}
		if f.sanitizer != nil {
			fi.Snippet = f.sanitizer.PlainText(snippetSource)
		}

		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			fi.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			fi.PublishedAt = &t
		}

		converted = append(converted, fi)
	}

	return converted
}
