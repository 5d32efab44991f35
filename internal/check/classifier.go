package check

import (
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/statuswatch/internal/model"
)

// SummaryMaxLength はインシデント要約の最大文字数（rune単位）。
const SummaryMaxLength = 200

var (
	majorKeywords   = []string{"fully down", "major outage"}
	partialKeywords = []string{"partial", "degraded", "incident"}
)

// severity はキーワード走査で観測した深刻度。MAJOR > PARTIAL > none。
type severity int

const (
	severityNone severity = iota
	severityPartial
	severityMajor
)

// Input は判定の入力。FeedInput / PageInput / FailedInput のいずれか。
type Input interface {
	isInput()
}

// FeedInput はフィード取得に成功した結果。Itemsはフィード本来の順序（新しい順）。
type FeedInput struct {
	Items []model.FeedItem
}

// PageInput はページ取得に成功した結果。Textは小文字化済みの本文テキスト。
type PageInput struct {
	Text string
}

// FailedInput は取得またはパースに失敗した結果。
type FailedInput struct {
	Err error
}

func (FeedInput) isInput()   {}
func (PageInput) isInput()   {}
func (FailedInput) isInput() {}

// Result は判定結果。
type Result struct {
	Status   model.CompanyStatus
	Incident *model.Incident
	// Degraded は取得失敗による縮退判定であることを示す。
	Degraded bool
	// Structured はフィードからの構造化抽出に成功したことを示す。
	// trueの場合のみ、企業の直近インシデントをIncidentで置き換える。
	Structured bool
}

// Classify は取得結果から集約ステータスと直近インシデントを導出する。
// 副作用を持たず、同じ入力には常に同じ結果を返す。失敗入力は partially_down に縮退する。
func Classify(in Input) Result {
	switch v := in.(type) {
	case FeedInput:
		return classifyFeed(v.Items)
	case *FeedInput:
		if v != nil {
			return classifyFeed(v.Items)
		}
	case PageInput:
		return classifyPage(v.Text)
	case *PageInput:
		if v != nil {
			return classifyPage(v.Text)
		}
	}
	return Result{Status: model.StatusPartiallyDown, Degraded: true}
}

// InputFromFeed はフィード取得結果とエラーから判定入力を組み立てる。
func InputFromFeed(items []model.FeedItem, err error) Input {
	if err != nil {
		return FailedInput{Err: err}
	}
	return FeedInput{Items: items}
}

// InputFromPage はページ取得結果とエラーから判定入力を組み立てる。
func InputFromPage(text string, err error) Input {
	if err != nil {
		return FailedInput{Err: err}
	}
	return PageInput{Text: text}
}

func classifyFeed(items []model.FeedItem) Result {
	result := Result{Status: model.StatusUp, Structured: true}
	if len(items) == 0 {
		return result
	}

	// 深刻度は全件を走査して決め、MAJORを見つけた時点で打ち切る
	strongest := severityNone
	for _, item := range items {
		s := scanSeverity(item.Title + " " + itemBody(item))
		if s > strongest {
			strongest = s
		}
		if strongest == severityMajor {
			break
		}
	}
	result.Status = statusFor(strongest)

	// インシデント記述子は深刻度を決めた項目ではなく常に先頭項目から作る
	result.Incident = incidentFrom(items[0])
	return result
}

func classifyPage(text string) Result {
	return Result{Status: statusFor(scanSeverity(text))}
}

// scanSeverity は大文字小文字を区別せずにキーワードを走査する。
func scanSeverity(text string) severity {
	lower := strings.ToLower(text)
	for _, kw := range majorKeywords {
		if strings.Contains(lower, kw) {
			return severityMajor
		}
	}
	for _, kw := range partialKeywords {
		if strings.Contains(lower, kw) {
			return severityPartial
		}
	}
	return severityNone
}

func statusFor(s severity) model.CompanyStatus {
	switch s {
	case severityMajor:
		return model.StatusFullyDown
	case severityPartial:
		return model.StatusPartiallyDown
	default:
		return model.StatusUp
	}
}

// itemBody は走査対象の本文を返す。マークアップ内の属性値に反応しないよう、
// 可視テキストであるSnippetを優先する。
func itemBody(item model.FeedItem) string {
	if strings.TrimSpace(item.Snippet) != "" {
		return item.Snippet
	}
	return item.BodyText
}

func incidentFrom(item model.FeedItem) *model.Incident {
	summary := firstNonEmpty(item.Snippet, item.BodyText)
	if item.Title == "" && summary == "" {
		return nil
	}

	incident := &model.Incident{
		Title:   item.Title,
		Summary: truncate(summary, SummaryMaxLength),
	}
	if item.PublishedAt != nil {
		t := *item.PublishedAt
		incident.OccurredAt = &t
	}
	return incident
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// truncate はrune単位でmaxLen文字に切り詰める。
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}
