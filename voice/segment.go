package voice

import (
	"strings"
	"unicode/utf8"
)

// =============================================================================
// ✂️ 流式分句器
// =============================================================================

// sentenceTerminals 句末标点，命中即切出一个分段。
var sentenceTerminals = map[rune]bool{
	'。': true,
	'！': true,
	'？': true,
	'…': true,
	'.': true,
	'!': true,
	'?': true,
}

// segmentFeed 把增量文本追加到缓冲并切出完整句子。
// 返回剩余的不完整句子与按出现顺序切出的分段；分段两端空白
// 已去除，空分段不会出现。换行符视为切分点并被丢弃。
func segmentFeed(buffer, text string) (string, []string) {
	s := buffer + text
	var segments []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			if seg := strings.TrimSpace(s[start:i]); seg != "" {
				segments = append(segments, seg)
			}
			start = i + 1
			continue
		}
		if sentenceTerminals[r] {
			end := i + utf8.RuneLen(r)
			if seg := strings.TrimSpace(s[start:end]); seg != "" {
				segments = append(segments, seg)
			}
			start = end
		}
	}
	return s[start:], segments
}

// segmentFlush 在回复流结束时取出缓冲里残留的半句。
// 返回去除空白后的分段；若缓冲为空或全为空白则 ok 为 false。
func segmentFlush(buffer string) (string, bool) {
	seg := strings.TrimSpace(buffer)
	return seg, seg != ""
}

// =============================================================================
// 🧱 结构化块过滤器
// =============================================================================

// blockFilter 从可朗读文本中剔除花括号包裹的结构化内容。
// 过滤器跨增量保持状态：嵌套花括号按深度计数，深度归零后
// 文本重新进入可朗读输出。花括号本身与其中内容都被丢弃。
type blockFilter struct {
	depth int
}

// feed 处理一段增量文本，返回其中可朗读的部分。
func (f *blockFilter) feed(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r == '{':
			f.depth++
		case r == '}':
			if f.depth > 0 {
				f.depth--
			}
		case f.depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// reset 清除跨增量状态，打断时调用。
func (f *blockFilter) reset() {
	f.depth = 0
}
