package news

import (
	"fmt"
	"strings"

	"feishu-assistant/pkg/feishu"
	"feishu-assistant/pkg/markethours"
	"feishu-assistant/pkg/news"
)

const rule = "----------------------------------------"

// Text renders d as a plain text message.
func Text(d *Digest) string {
	var b strings.Builder
	b.WriteString(d.Title())
	b.WriteString("\n\n来源：" + sources(d))
	b.WriteString("\n生成时间：" + d.GeneratedAt.In(markethours.Location()).Format("2006-01-02 15:04"))
	for i, r := range d.Readings {
		b.WriteString("\n\n" + rule + "\n")
		writeReading(&b, i+1, r, false)
	}
	return b.String()
}

// Card renders d as an interactive card, one block per article.
func Card(d *Digest) *feishu.Card {
	card := feishu.NewCard(d.Title(), "indigo")
	card.Markdown("来源：" + sources(d))
	for i, r := range d.Readings {
		var b strings.Builder
		writeReading(&b, i+1, r, true)
		card.Divider()
		card.Markdown(b.String())
	}
	return card
}

func writeReading(b *strings.Builder, n int, r Reading, md bool) {
	a := r.Article
	if md && a.URL != "" {
		fmt.Fprintf(b, "**%d. [%s](%s)**", n, a.Title, a.URL)
	} else {
		fmt.Fprintf(b, "【%d. %s】", n, a.Title)
	}
	fmt.Fprintf(b, "\n来源: %s", news.Label(a.Source))
	if a.Abstract != "" {
		fmt.Fprintf(b, "\n📝 摘要: %s", a.Abstract)
	}
	if len(r.Vocabulary) > 0 {
		b.WriteString("\n\n📚 重点单词:")
		for _, w := range r.Vocabulary {
			fmt.Fprintf(b, "\n  • %s: %s", w.Word, w.Meaning)
		}
	}
	if len(r.KeySentences) > 0 {
		b.WriteString("\n\n💬 关键句子:")
		for _, s := range r.KeySentences {
			fmt.Fprintf(b, "\n  %s\n  → %s", s.English, s.Chinese)
			if s.Explanation != "" {
				fmt.Fprintf(b, "\n  💡 %s", s.Explanation)
			}
		}
	}
	if r.Summary != "" {
		fmt.Fprintf(b, "\n\n📋 总结: %s", r.Summary)
	}
}

func sources(d *Digest) string {
	seen := map[string]bool{}
	var labels []string
	for _, r := range d.Readings {
		if !seen[r.Article.Source] {
			seen[r.Article.Source] = true
			labels = append(labels, news.Label(r.Article.Source))
		}
	}
	return strings.Join(labels, " + ")
}

// Headlines lists the article titles, one per line.
func Headlines(d *Digest) string {
	lines := make([]string, 0, len(d.Readings))
	for i, r := range d.Readings {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, r.Article.Title))
	}
	return strings.Join(lines, "\n")
}
