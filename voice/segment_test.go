package voice

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestSegmentFeed(t *testing.T) {
	tests := []struct {
		name      string
		buffer    string
		text      string
		remainder string
		segments  []string
	}{
		{
			name:      "无标点全部留在缓冲",
			text:      "今天天气",
			remainder: "今天天气",
		},
		{
			name:     "句号切出整句",
			text:     "今天天气很好。",
			segments: []string{"今天天气很好。"},
		},
		{
			name:      "多句混合",
			text:      "你好！今天天气很好。明天",
			remainder: "明天",
			segments:  []string{"你好！", "今天天气很好。"},
		},
		{
			name:      "跨增量拼接",
			buffer:    "今天天气",
			text:      "很好。明天呢",
			remainder: "明天呢",
			segments:  []string{"今天天气很好。"},
		},
		{
			name:     "换行切分且被丢弃",
			text:     "第一行\n第二行。",
			segments: []string{"第一行", "第二行。"},
		},
		{
			name: "纯空白不产生分段",
			text: "  \n  ",
		},
		{
			name:     "连续标点各自成段",
			text:     "好。！",
			segments: []string{"好。", "！"},
		},
		{
			name:      "西文标点同样生效",
			text:      "Hello! How are you? fine",
			remainder: " fine",
			segments:  []string{"Hello!", "How are you?"},
		},
		{
			name:      "省略号切句",
			text:      "嗯…让我想想",
			remainder: "让我想想",
			segments:  []string{"嗯…"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remainder, segments := segmentFeed(tt.buffer, tt.text)
			assert.Equal(t, tt.remainder, remainder)
			assert.Equal(t, tt.segments, segments)
		})
	}
}

func TestSegmentFlush(t *testing.T) {
	seg, ok := segmentFlush("  残留半句 ")
	assert.True(t, ok)
	assert.Equal(t, "残留半句", seg)

	_, ok = segmentFlush("   ")
	assert.False(t, ok)

	_, ok = segmentFlush("")
	assert.False(t, ok)
}

// 无论增量怎么切分，切出的分段加剩余缓冲在去掉空白后必须
// 与原始文本逐字一致，且顺序不变。
func TestSegmentFeedPreservesText(t *testing.T) {
	stripSpace := func(s string) string {
		return strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, s)
	}

	rapid.Check(t, func(t *rapid.T) {
		runes := rapid.SliceOf(rapid.RuneFrom([]rune("你好天气很今明。！？…!?.\n abc"))).Draw(t, "runes")
		text := string(runes)

		buffer := ""
		var all []string
		rest := text
		for len(rest) > 0 {
			n := rapid.IntRange(1, len(rest)).Draw(t, "chunk")
			// 不在多字节字符中间切断
			for n < len(rest) && !utf8RuneStart(rest[n]) {
				n++
			}
			var segs []string
			buffer, segs = segmentFeed(buffer, rest[:n])
			all = append(all, segs...)
			rest = rest[n:]
		}

		joined := strings.Join(all, "") + buffer
		assert.Equal(t, stripSpace(text), stripSpace(joined))

		for _, seg := range all {
			assert.NotEmpty(t, seg)
			assert.Equal(t, strings.TrimSpace(seg), seg)
		}
	})
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func TestBlockFilter(t *testing.T) {
	tests := []struct {
		name     string
		inputs   []string
		expected []string
	}{
		{
			name:     "无花括号原样透传",
			inputs:   []string{"今天天气很好"},
			expected: []string{"今天天气很好"},
		},
		{
			name:     "花括号内容被剔除",
			inputs:   []string{`好的{"emotion":"happy"}没问题`},
			expected: []string{"好的没问题"},
		},
		{
			name:     "嵌套花括号按深度计数",
			inputs:   []string{`前{"a":{"b":1}}后`},
			expected: []string{"前后"},
		},
		{
			name:     "跨增量保持深度",
			inputs:   []string{`开始{"key":`, `"value"}结束`},
			expected: []string{"开始", "结束"},
		},
		{
			name:     "深度为零的右花括号被丢弃",
			inputs:   []string{"}文本"},
			expected: []string{"文本"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f blockFilter
			for i, in := range tt.inputs {
				assert.Equal(t, tt.expected[i], f.feed(in))
			}
		})
	}
}

func TestBlockFilterReset(t *testing.T) {
	var f blockFilter
	f.feed(`{"unclosed":`)
	assert.Equal(t, "", f.feed("仍在块内"))

	f.reset()
	assert.Equal(t, "重新可读", f.feed("重新可读"))
}
