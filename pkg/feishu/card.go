package feishu

// Card is an interactive message card.
type Card struct {
	Config   CardConfig `json:"config"`
	Header   CardHeader `json:"header"`
	Elements []Element  `json:"elements"`
}

// CardConfig holds card-level display flags.
type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

// CardHeader is the card title bar. Template is a colour name such as blue,
// green or red.
type CardHeader struct {
	Title    Text   `json:"title"`
	Template string `json:"template,omitempty"`
}

// Text is a text object; Tag is plain_text or lark_md.
type Text struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// Element is one card body element.
type Element struct {
	Tag  string `json:"tag"`
	Text *Text  `json:"text,omitempty"`
}

// NewCard returns a wide card with a plain-text title.
func NewCard(title, template string) *Card {
	return &Card{
		Config: CardConfig{WideScreenMode: true},
		Header: CardHeader{Title: Text{Tag: "plain_text", Content: title}, Template: template},
	}
}

// Markdown appends a lark_md block.
func (c *Card) Markdown(content string) *Card {
	c.Elements = append(c.Elements, Element{Tag: "div", Text: &Text{Tag: "lark_md", Content: content}})
	return c
}

// Divider appends a horizontal rule.
func (c *Card) Divider() *Card {
	c.Elements = append(c.Elements, Element{Tag: "hr"})
	return c
}
