// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ID はリモートリソース上のレコード識別子を表す。
// サーバーは数値・文字列のどちらでもIDを返しうるため、
// JSONデコード時に一度だけ文字列へ正規化し、以降は == で比較する。
type ID string

// ParseID は int / int64 / uint / string などの値からIDを生成する。
// 対応しない型の場合はエラーを返す。
func ParseID(v any) (ID, error) {
	switch x := v.(type) {
	case ID:
		return x, nil
	case string:
		return ID(x), nil
	case int:
		return ID(strconv.Itoa(x)), nil
	case int64:
		return ID(strconv.FormatInt(x, 10)), nil
	case uint:
		return ID(strconv.FormatUint(uint64(x), 10)), nil
	case uint64:
		return ID(strconv.FormatUint(x, 10)), nil
	case json.Number:
		return ID(x.String()), nil
	default:
		return "", fmt.Errorf("unsupported id type %T", v)
	}
}

// String はIDの文字列表現を返す。
func (id ID) String() string {
	return string(id)
}

// IsZero はIDが未設定かどうかを返す。
func (id ID) IsZero() bool {
	return id == ""
}

// isCanonicalInt は先頭ゼロを含まない非負整数表現かどうかを判定する。
// "007" のような値は数値として書き出すと値が変わるため文字列として扱う。
func (id ID) isCanonicalInt() bool {
	s := string(id)
	if s == "" || len(s) > 18 {
		return false
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MarshalJSON は正規の整数表現であればJSON数値、それ以外はJSON文字列として書き出す。
func (id ID) MarshalJSON() ([]byte, error) {
	if id.isCanonicalInt() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON はJSON数値・文字列・nullのいずれも受け付ける。
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id: %s", string(data))
	}
	*id = normalizeNumber(n)
	return nil
}

// maxExactInt はfloat64で誤差なく表現できる整数の最大値（2^53）。
const maxExactInt = 1 << 53

// normalizeNumber はJSON数値をIDへ変換する。
// 整数表記はそのまま保持する。1.0 や 1e3 のような表記は、
// 誤差なく整数に変換できる範囲に限り整数へ揃える。
func normalizeNumber(n json.Number) ID {
	s := n.String()
	if isIntegerToken(s) {
		return ID(s)
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return ID(s)
	}
	return ID(strconv.FormatInt(int64(f), 10))
}

// isIntegerToken は符号付きを含む10進整数の表記かどうかを判定する。
func isIntegerToken(s string) bool {
	if strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
