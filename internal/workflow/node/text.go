package node

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// Summarize 将任意结果序列化为截断后的单行文本，用于执行记录
func Summarize(v any, maxRunes int) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			s = fmt.Sprintf("%v", t)
		} else {
			s = string(b)
		}
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return TruncateByRunes(s, maxRunes) + "..."
}
