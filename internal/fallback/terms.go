// Package fallback 实现了不依赖向量索引的关键词兜底检索。
package fallback

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed terms.yaml
var defaultTermsYAML []byte

// TermTable 是阿拉伯语到英语的检索词映射表。
type TermTable struct {
	Words           map[string][]string `yaml:"words"`
	Phrases         map[string][]string `yaml:"phrases"`
	GenericKeywords []string            `yaml:"generic_keywords"`
	AnchorKeywords  []string            `yaml:"anchor_keywords"`
	SentenceTerms   []string            `yaml:"sentence_terms"`

	// phraseOrder 保存 Phrases 的键，按长度降序，保证关键词顺序确定。
	phraseOrder []string
}

// DefaultTermTable 返回编译进二进制的默认映射表。
func DefaultTermTable() (*TermTable, error) {
	return ParseTermTable(defaultTermsYAML)
}

// LoadTermTable 读取 path 指定的 YAML 映射表，path 为空时返回默认表。
func LoadTermTable(path string) (*TermTable, error) {
	if path == "" {
		return DefaultTermTable()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取检索词映射表失败: %w", err)
	}
	return ParseTermTable(data)
}

// ParseTermTable 解析 YAML 格式的映射表，英文关键词统一转为小写。
func ParseTermTable(data []byte) (*TermTable, error) {
	var t TermTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("解析检索词映射表失败: %w", err)
	}
	t.Words = lowerValues(t.Words)
	t.Phrases = lowerValues(t.Phrases)
	t.GenericKeywords = lowerAll(t.GenericKeywords)
	t.AnchorKeywords = lowerAll(t.AnchorKeywords)
	t.SentenceTerms = lowerAll(t.SentenceTerms)

	t.phraseOrder = make([]string, 0, len(t.Phrases))
	for p := range t.Phrases {
		t.phraseOrder = append(t.phraseOrder, p)
	}
	sortByLengthDesc(t.phraseOrder)
	return &t, nil
}

func lowerValues(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[strings.TrimSpace(k)] = lowerAll(v)
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sortByLengthDesc(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
}
