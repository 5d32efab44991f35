package check

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/statuswatch/internal/model"
)

// FeedType はフィードの種類（RSS/Atom）を表す。
type FeedType string

const (
	// FeedTypeRSS はRSSフィード。
	FeedTypeRSS FeedType = "rss"
	// FeedTypeAtom はAtomフィード。
	FeedTypeAtom FeedType = "atom"
)

// FeedCandidate はHTMLのheadから検出されたフィード候補。
type FeedCandidate struct {
	URL      string
	FeedType FeedType
	Title    string
}

// FeedDetector はステータスページのURLからフィードURLを自動検出する。
// 企業登録時に、HTMLページのURLが入力された場合のフィード解決に使用する。
type FeedDetector struct {
	ssrfGuard   SSRFValidator
	timeout     time.Duration
	maxBodySize int64
}

// NewFeedDetector はFeedDetectorを生成する。
func NewFeedDetector(ssrfGuard SSRFValidator, timeout time.Duration) *FeedDetector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FeedDetector{
		ssrfGuard:   ssrfGuard,
		timeout:     timeout,
		maxBodySize: DefaultMaxBodySize,
	}
}

// DetectFeedURL はURLがフィードそのものであればそのまま返し、
// HTMLであればheadのalternateリンクから最適なフィードURLを返す。
// どちらでもない場合は FetchErrorParse を返す。
func (d *FeedDetector) DetectFeedURL(ctx context.Context, inputURL string) (string, error) {
	body, contentType, err := fetchBody(ctx, d.ssrfGuard, inputURL,
		"application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*",
		d.timeout, d.maxBodySize)
	if err != nil {
		return "", err
	}

	if IsDirectFeed(contentType, body) {
		return inputURL, nil
	}

	best := SelectBestFeed(ParseFeedLinksFromHTML(body, inputURL), inputURL)
	if best == nil {
		return "", model.NewParseError(inputURL, errNoFeedLink)
	}
	return best.URL, nil
}

var errNoFeedLink = errors.New("no RSS/Atom link found")

// IsDirectFeed はContent-Typeとボディの先頭からRSS/Atomフィードかを判定する。
func IsDirectFeed(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}

	switch strings.ToLower(mediaType) {
	case "application/rss+xml", "application/atom+xml":
		return true
	case "text/xml", "application/xml", "":
		return looksLikeFeed(body)
	}
	return false
}

// looksLikeFeed は先頭4KBにRSS/RDF/Atomのルート要素があるかを調べる。
func looksLikeFeed(body []byte) bool {
	if len(body) > 4096 {
		body = body[:4096]
	}
	prefix := strings.ToLower(string(body))

	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// ParseFeedLinksFromHTML はheadの <link rel="alternate"> からフィード候補を抽出する。
// 相対URLはbaseURLを基準に絶対URLへ解決する。
func ParseFeedLinksFromHTML(htmlBody []byte, baseURL string) []FeedCandidate {
	var candidates []FeedCandidate

	base, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return candidates

		case html.EndTagToken:
			if tn, _ := tokenizer.TagName(); string(tn) == "head" {
				return candidates
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			switch string(tn) {
			case "body":
				return candidates
			case "link":
			default:
				continue
			}
			if !hasAttr {
				continue
			}

			attrs := map[string]string{}
			for {
				key, val, more := tokenizer.TagAttr()
				attrs[strings.ToLower(string(key))] = string(val)
				if !more {
					break
				}
			}

			if !strings.EqualFold(attrs["rel"], "alternate") || attrs["href"] == "" {
				continue
			}

			var feedType FeedType
			switch strings.ToLower(attrs["type"]) {
			case "application/rss+xml":
				feedType = FeedTypeRSS
			case "application/atom+xml":
				feedType = FeedTypeAtom
			default:
				continue
			}

			ref, err := url.Parse(attrs["href"])
			if err != nil {
				continue
			}

			candidates = append(candidates, FeedCandidate{
				URL:      base.ResolveReference(ref).String(),
				FeedType: feedType,
				Title:    attrs["title"],
			})
		}
	}
}

// SelectBestFeed は候補から 同一ホスト > Atom > 出現順 の優先順位で1件を選ぶ。
func SelectBestFeed(candidates []FeedCandidate, inputURL string) *FeedCandidate {
	if len(candidates) == 0 {
		return nil
	}

	inputHost := hostOf(inputURL)
	bestIdx, bestScore := 0, -1
	for i, c := range candidates {
		score := 0
		if hostOf(c.URL) == inputHost {
			score += 100
		}
		if c.FeedType == FeedTypeAtom {
			score += 10
		}
		// 同スコアは先に出現した候補を優先する
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	return &candidates[bestIdx]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
