package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templatesFS embed.FS

var mailTemplate = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// Kind is the purpose of a message.
type Kind int

const (
	KindDigest Kind = iota
	KindManualDigest
	KindPush
)

func (k Kind) String() string {
	switch k {
	case KindDigest:
		return "digest"
	case KindManualDigest:
		return "manual_digest"
	default:
		return "push"
	}
}

const (
	siteName  = "动态监控站"
	pushTitle = "动态监控站 - 每日更新"
)

// Message is rendered once and handed to a sink, which picks the parts it can
// display.
type Message struct {
	// Mail
	Subject string
	HTML    string

	// Push
	Title   string
	Content string
	Link    string

	Posts int
}

// BuildMessage renders the message for kind reporting count posts.
func BuildMessage(kind Kind, count int, now time.Time, siteURL string) (Message, error) {
	date := chineseDate(now)
	msg := Message{
		Title:   pushTitle,
		Content: fmt.Sprintf("今日有 %d 条新内容\n\n%s\n\n请访问网站查看详情", count, date),
		Link:    siteURL,
		Posts:   count,
	}

	switch kind {
	case KindManualDigest:
		msg.Subject = fmt.Sprintf("%s - 最新动态 (%s)", siteName, now.Format("2006-01-02 15:04"))
	default:
		msg.Subject = fmt.Sprintf("动态监控日报 - %s", date)
	}

	var buf bytes.Buffer
	err := mailTemplate.ExecuteTemplate(&buf, "digest.html", struct {
		Site  string
		Date  string
		Count int
		Year  int
		Link  string
	}{siteName, date, count, now.Year(), siteURL})
	if err != nil {
		return Message{}, fmt.Errorf("failed to render mail body: %w", err)
	}
	msg.HTML = buf.String()
	return msg, nil
}

func chineseDate(t time.Time) string {
	return fmt.Sprintf("%d年%d月%d日", t.Year(), int(t.Month()), t.Day())
}
