package llm

import (
	"strings"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePromptTemplate(t *testing.T) {
	tpl, err := ParsePromptTemplate("inline", "{{ range .Items }}- {{ . }}\n{{ end }}", nil)
	require.NoError(t, err)

	out, err := tpl.Render(map[string]any{"Items": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "- a\n- b\n", out)

	_, err = tpl.Render(map[string]any{})
	assert.Error(t, err, "missing keys are errors")

	_, err = ParsePromptTemplate("broken", "{{ .Name ", nil)
	assert.Error(t, err)
}

func TestPromptTemplateFuncs(t *testing.T) {
	tpl, err := ParsePromptTemplate("funcs", `{{ join .Skills ", " }} / {{ upper .Market }} / {{ shout "hi" }}`,
		template.FuncMap{"shout": func(s string) string { return strings.ToUpper(s) + "!" }})
	require.NoError(t, err)

	out, err := tpl.Render(map[string]any{"Skills": []string{"chat", "help"}, "Market": "hk"})
	require.NoError(t, err)
	assert.Equal(t, "chat, help / HK / HI!", out)
}
