package logger

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

type encoder interface {
	encode(rec map[string]any) ([]byte, error)
}

// jsonEncoder writes one JSON object per record with the known keys first.
type jsonEncoder struct {
	order []string
}

func (e jsonEncoder) encode(rec map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keysOf(rec, e.order, nil) {
		v, err := json.Marshal(rec[k])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// kvEncoder writes logfmt-style key=value pairs for terminals.
type kvEncoder struct {
	order []string
}

// Machine-only keys that add noise to a terminal line.
var kvHidden = map[string]bool{"ts_unix_nano": true, "rid_full": true}

func (e kvEncoder) encode(rec map[string]any) ([]byte, error) {
	var b strings.Builder
	for i, k := range keysOf(rec, e.order, kvHidden) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kvValue(rec[k]))
	}
	return []byte(b.String()), nil
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		s = strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return strconv.Quote(err.Error())
		}
		s = string(b)
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

// keysOf returns the keys of rec: those listed in order first, the rest sorted.
func keysOf(rec map[string]any, order []string, hidden map[string]bool) []string {
	keys := make([]string, 0, len(rec))
	listed := make(map[string]bool, len(order))
	for _, k := range order {
		listed[k] = true
		if _, ok := rec[k]; ok && !hidden[k] {
			keys = append(keys, k)
		}
	}
	rest := len(keys)
	for k := range rec {
		if !listed[k] && !hidden[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys[rest:])
	return keys
}
