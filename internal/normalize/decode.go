package normalize

import (
	"bytes"
	"encoding/json"
)

var jsonNull = []byte("null")

// field returns raw[name] unless it is absent or JSON null.
func field(raw map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	v, ok := raw[name]
	if !ok || bytes.Equal(bytes.TrimSpace(v), jsonNull) {
		return nil, false
	}
	return v, true
}

// object decodes a nested JSON object, reporting failures against path.
func object(raw map[string]json.RawMessage, name, path string) (map[string]json.RawMessage, error) {
	v, ok := field(raw, name)
	if !ok {
		return nil, fail(KindMissingField, path, nil)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(v, &obj); err != nil {
		return nil, fail(KindInvalidField, path, err)
	}
	return obj, nil
}

// decodeField unmarshals a required member of obj into out.
func decodeField(obj map[string]json.RawMessage, name, path string, out any) error {
	v, ok := field(obj, name)
	if !ok {
		return fail(KindMissingField, path, nil)
	}
	if err := json.Unmarshal(v, out); err != nil {
		return fail(KindInvalidField, path, err)
	}
	return nil
}
