package types

import (
	"encoding/json"
	"strings"
)

// RawApObj wraps an inbound ActivityPub document as loose JSON. Remote
// servers attach vendor fields freely, so inbound documents are accessed by
// dotted path instead of being forced into a struct.
type RawApObj struct {
	data map[string]any
}

func LoadAsRawApObj(raw []byte) (*RawApObj, error) {
	var data map[string]any
	err := json.Unmarshal(raw, &data)
	return &RawApObj{data}, err
}

func (r *RawApObj) GetData() map[string]any {
	return r.data
}

func (r *RawApObj) get(key string) (any, bool) {
	keys := strings.Split(key, ".")
	var value any = r.data
	for _, k := range keys {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return value, true
}

func (r *RawApObj) GetRaw(key string) (*RawApObj, bool) {
	value, ok := r.get(key)
	if !ok {
		return nil, false
	}
	m, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}
	return &RawApObj{m}, true
}

func (r *RawApObj) GetString(key string) (string, bool) {
	value, ok := r.get(key)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// MustGetString returns the string at key or "" when absent.
func (r *RawApObj) MustGetString(key string) string {
	s, _ := r.GetString(key)
	return s
}
