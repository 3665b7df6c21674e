package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectFallback(t *testing.T) {
	cases := []struct {
		name    string
		texts   []string
		subject string
	}{
		{"数学关键词", []string{"math help"}, "math"},
		{"代数", []string{"How do I solve this algebra equation?"}, "math"},
		{"科学", []string{"Explain photosynthesis in biology class"}, "science"},
		{"语言", []string{"Help me outline my essay"}, "language"},
		{"历史", []string{"Causes of World War I"}, "history"},
		{"编程", []string{"Why does my python loop never end"}, "coding"},
		{"中文关键词", []string{"帮我复习数学"}, "math"},
		{"兜底", []string{"tell me a joke"}, "general"},
		{"空输入", nil, "general"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subject, text := SelectFallback(tc.texts...)
			assert.Equal(t, tc.subject, subject)
			assert.NotEmpty(t, strings.TrimSpace(text))
		})
	}
}

func TestSelectFallbackOrder(t *testing.T) {
	t.Run("学科提示优先于正文", func(t *testing.T) {
		subject, _ := SelectFallback("history", "solve this equation")
		assert.Equal(t, "history", subject)
	})

	t.Run("空提示跳过", func(t *testing.T) {
		subject, _ := SelectFallback("  ", "geometry homework")
		assert.Equal(t, "math", subject)
	})

	t.Run("表内顺序决定命中", func(t *testing.T) {
		// 同时包含 math 与 science 关键词时取表中靠前的条目
		subject, _ := SelectFallback("math and physics")
		assert.Equal(t, "math", subject)
	})

	t.Run("不误匹配子串", func(t *testing.T) {
		for _, text := range []string{
			"excellent software",
			"How do I decode a secret message?",
			"the aftermath of the storm",
			"spreading rumours",
		} {
			subject, _ := SelectFallback(text)
			assert.Equal(t, "general", subject, text)
		}
	})

	t.Run("整词带标点仍命中", func(t *testing.T) {
		subject, _ := SelectFallback("Can you check my code?")
		assert.Equal(t, "coding", subject)

		subject, _ = SelectFallback("World-War II timeline")
		assert.Equal(t, "history", subject)
	})

	t.Run("中文关键词嵌在句中", func(t *testing.T) {
		subject, _ := SelectFallback("明天有化学考试")
		assert.Equal(t, "science", subject)
	})
}

func TestMathFallbackWording(t *testing.T) {
	_, text := SelectFallback("math help")
	assert.Contains(t, strings.ToLower(text), "math")
}
