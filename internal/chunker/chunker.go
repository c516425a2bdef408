// Package chunker 将文档提取出的纯文本切分为有长度上限的段落。
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxChunkSize 是单个切块的默认最大字符数。
	DefaultMaxChunkSize = 1000
	// MinChunkSize 是切块上限的最小值，至少容纳一个字符和句号。
	MinChunkSize = 2
)

// Chunker 按句号切句，再把相邻句子拼接到不超过 maxChunkSize 个字符。
type Chunker struct {
	maxChunkSize int
}

// New 创建 Chunker，maxChunkSize 非正数时使用默认值，小于 MinChunkSize 时取 MinChunkSize。
func New(maxChunkSize int) *Chunker {
	return &Chunker{maxChunkSize: normalize(maxChunkSize)}
}

func normalize(maxChunkSize int) int {
	switch {
	case maxChunkSize <= 0:
		return DefaultMaxChunkSize
	case maxChunkSize < MinChunkSize:
		return MinChunkSize
	default:
		return maxChunkSize
	}
}

// MaxChunkSize 返回切块字符上限。
func (c *Chunker) MaxChunkSize() int {
	return c.maxChunkSize
}

// Split 返回有序的切块列表，至少包含一个元素。
func (c *Chunker) Split(text string) []string {
	return Split(text, c.maxChunkSize)
}

// Split 将 text 切分为不超过 maxChunkSize 个字符的切块。
// 相同输入总是得到相同输出；切块之间不重叠。
func Split(text string, maxChunkSize int) []string {
	maxChunkSize = normalize(maxChunkSize)

	var (
		chunks []string
		buf    strings.Builder
		// bufLen 包含末尾的分隔空格，TrimSpace 后的长度为 bufLen-1
		bufLen int
	)
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			chunks = append(chunks, s)
		}
		buf.Reset()
		bufLen = 0
	}

	for _, raw := range strings.Split(text, ".") {
		sentence := strings.TrimSpace(raw)
		if sentence == "" {
			continue
		}
		for _, piece := range window(sentence, maxChunkSize-1) {
			n := utf8.RuneCountInString(piece) + 1
			if bufLen > 0 && bufLen+n > maxChunkSize {
				flush()
			}
			buf.WriteString(piece)
			buf.WriteString(". ")
			bufLen += n + 1
		}
	}
	flush()

	if len(chunks) == 0 {
		runes := []rune(text)
		if len(runes) > maxChunkSize {
			runes = runes[:maxChunkSize]
		}
		return []string{string(runes)}
	}
	return chunks
}

// window 把超过 size 个字符的句子按字符切成连续的片段。
func window(sentence string, size int) []string {
	if size < 1 {
		size = 1
	}
	if utf8.RuneCountInString(sentence) <= size {
		return []string{sentence}
	}
	runes := []rune(sentence)
	pieces := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}
