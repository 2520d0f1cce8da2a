// Package tencentsign 实现腾讯云语音服务 WebSocket 接口的签名算法。
//
// ASR 与 TTS 的流式接口都要求把查询参数按键名排序后拼成
// 待签名串，再做 HMAC-SHA1 + Base64。两个服务只在待签名串的
// 前缀上有差别，排序和摘要逻辑是共用的。
package tencentsign

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// Query 把参数按键名升序拼成 k=v&k=v 形式的原始查询串。
// 值不做转义，签名必须基于原始值计算。
func Query(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	return sb.String()
}

// Signature 对待签名串做 HMAC-SHA1 并返回 Base64 编码结果。
func Signature(secretKey, raw string) string {
	mac := hmac.New(sha1.New, []byte(secretKey))
	mac.Write([]byte(raw))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Escape 按 RFC 3986 转义查询参数值，空格编码为 %20 而不是加号。
func Escape(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
