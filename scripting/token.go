package scripting

import "strings"

// TokenHandler 收到占位符内部的内容，返回替换后的完整文本
type TokenHandler func(content string) (string, error)

// ParseTokens 通用的占位符扫描，#{...} 和 ${...} 共用。
// 反斜杠转义的开标记原样保留（去掉反斜杠），未闭合的开标记按普通文本处理
func ParseTokens(text, open, close string, handler TokenHandler) (string, error) {
	start := strings.Index(text, open)
	if start < 0 {
		return text, nil
	}
	var sb strings.Builder
	sb.Grow(len(text))
	offset := 0
	for start >= 0 {
		if start > 0 && text[start-1] == '\\' {
			// \#{ 转义，保留字面量
			sb.WriteString(text[offset : start-1])
			sb.WriteString(open)
			offset = start + len(open)
		} else {
			end := strings.Index(text[start+len(open):], close)
			if end < 0 {
				sb.WriteString(text[offset:])
				return sb.String(), nil
			}
			end += start + len(open)
			sb.WriteString(text[offset:start])
			replaced, err := handler(text[start+len(open) : end])
			if err != nil {
				return "", err
			}
			sb.WriteString(replaced)
			offset = end + len(close)
		}
		next := strings.Index(text[offset:], open)
		if next < 0 {
			break
		}
		start = next + offset
	}
	sb.WriteString(text[offset:])
	return sb.String(), nil
}
