package ai

import (
	"strings"
	"unicode"
)

// fallbackEntry 关键词与兜底文案
type fallbackEntry struct {
	Subject  string
	Keywords []string
	Text     string
}

// fallbackTable 按顺序匹配，第一个命中的条目生效
var fallbackTable = []fallbackEntry{
	{
		Subject:  "math",
		Keywords: []string{"math", "algebra", "geometry", "equation", "fraction", "calculus", "arithmetic", "数学"},
		Text: "Our AI tutor is temporarily unavailable, but you can keep going with your math practice: " +
			"write down what the problem gives you, what it asks for, and try one small step at a time. " +
			"Check each step by substituting your answer back into the original problem.",
	},
	{
		Subject:  "science",
		Keywords: []string{"science", "physics", "chemistry", "biology", "experiment", "energy", "cells", "科学", "物理", "化学", "生物"},
		Text: "Our AI tutor is temporarily unavailable. For this science topic, start from the key definitions in your " +
			"lesson notes, then explain the idea in your own words and connect it to an everyday example or experiment.",
	},
	{
		Subject:  "language",
		Keywords: []string{"english", "grammar", "essay", "reading", "writing", "vocabulary", "poem", "英语", "语文", "作文"},
		Text: "Our AI tutor is temporarily unavailable. For reading and writing practice, reread the passage, note the main " +
			"idea of each paragraph, and draft a short summary before revising your sentences for clarity.",
	},
	{
		Subject:  "history",
		Keywords: []string{"history", "historical", "world war", "revolution", "civilization", "geography", "历史", "地理"},
		Text: "Our AI tutor is temporarily unavailable. For history and geography topics, build a short timeline or map of " +
			"the key events and places, then list the causes and consequences you can find in your lesson materials.",
	},
	{
		Subject:  "coding",
		Keywords: []string{"code", "coding", "program", "python", "algorithm", "编程"},
		Text: "Our AI tutor is temporarily unavailable. For programming exercises, break the task into small functions, " +
			"test each one with a simple input, and read any error message line by line.",
	},
}

// defaultFallbackText 兜底文案
const defaultFallbackText = "Our AI tutor is temporarily unavailable. Please continue with your lesson materials " +
	"and try asking again in a few minutes."

// SelectFallback 按关键词选择兜底文案，始终返回非空文本
// 英文关键词按整词匹配，中文关键词按子串匹配
func SelectFallback(texts ...string) (subject, text string) {
	for _, t := range texts {
		lower := strings.ToLower(t)
		if strings.TrimSpace(lower) == "" {
			continue
		}
		words := " " + strings.Join(strings.FieldsFunc(lower, isWordSeparator), " ") + " "
		for _, entry := range fallbackTable {
			for _, kw := range entry.Keywords {
				if matchKeyword(lower, words, kw) {
					return entry.Subject, entry.Text
				}
			}
		}
	}
	return "general", defaultFallbackText
}

// matchKeyword words 为空格分隔并首尾补空格的词序列
func matchKeyword(lower, words, kw string) bool {
	if !isASCII(kw) {
		return strings.Contains(lower, kw)
	}
	return strings.Contains(words, " "+kw+" ")
}

func isWordSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
