package aweme

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Message is one decoded JSON object from a feed file: a response page or an
// aweme within it. Numbers are kept as json.Number.
type Message map[string]any

// GetString retrieves message's string value with the given key. It returns
// the empty string if the message does not contain the given key or the value
// is not a string.
func (m Message) GetString(key string) string {
	st, _ := m[key].(string)
	return st
}

// GetID retrieves an identifier that the API sometimes encodes as a string and
// sometimes as a number.
func (m Message) GetID(key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// GetInt retrieves message's integer value with the given key. It returns 0
// if the key is missing or does not hold a number.
func (m Message) GetInt(key string) int64 {
	switch v := m[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// GetMessage retrieves a nested object. It returns nil if the key is missing
// or does not hold an object.
func (m Message) GetMessage(key string) Message {
	sub, ok := m[key].(map[string]any)
	if !ok {
		return nil
	}
	return Message(sub)
}

// GetPath follows a chain of nested objects, e.g. "video", "cover". It returns
// nil as soon as a link is missing.
func (m Message) GetPath(keys ...string) Message {
	cur := m
	for _, k := range keys {
		if cur == nil {
			return nil
		}
		cur = cur.GetMessage(k)
	}
	return cur
}

// GetStrings retrieves a list of strings. Elements that are not strings are
// returned as "" so that positions are preserved. It returns nil if the key
// is missing or does not hold a list.
func (m Message) GetStrings(key string) []string {
	slice, ok := m[key].([]any)
	if !ok {
		return nil
	}

	ss := make([]string, len(slice))
	for i, a := range slice {
		ss[i], _ = a.(string)
	}
	return ss
}

// GetSliceOfMessages retrieves message's value with the given key and returns
// it as a slice of messages. For example, it would retrieve a page's
// "aweme_list" field. It returns nil if the message does not contain a
// matching key. It returns an error if the retrieved field is not a slice of
// messages.
func (m Message) GetSliceOfMessages(key string) ([]Message, error) {
	x := m[key]
	if x == nil {
		return nil, nil
	}

	slice, ok := x.([]any)
	if !ok {
		return nil, fmt.Errorf("wrong type for key=%s: have=%T want=[]any", key, x)
	}

	var ps []Message
	for i, a := range slice {
		m, ok := a.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("wrong type for key=%s,idx=%d: have=%T want=map[string]any", key, i, a)
		}
		ps = append(ps, Message(m))
	}

	return ps, nil
}
