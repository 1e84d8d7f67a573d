package message

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/c360/semflow/errors"
)

// MarshalJSON encodes the identity first and then the properties in order.
func (m *Message) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	if m.id != "" {
		buf.WriteString(`"` + IDKey + `":`)
		id, _ := json.Marshal(m.id)
		buf.Write(id)
		first = false
	}
	for _, k := range m.keys {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(k)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Message", "MarshalJSON", "encode key")
		}
		val, err := json.Marshal(m.props[k])
		if err != nil {
			return nil, errors.WrapInvalid(err, "Message", "MarshalJSON",
				fmt.Sprintf("encode property %q", k))
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, restoring identity and property order.
// An existing identity is never overwritten.
func (m *Message) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return parseFailure(err, "read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.WrapInvalid(errors.ErrInvalidData, "Message", "UnmarshalJSON", "expect object")
	}

	var id string
	keys := make([]string, 0)
	props := make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return parseFailure(err, "read key")
		}
		key, ok := tok.(string)
		if !ok {
			return errors.WrapInvalid(errors.ErrInvalidData, "Message", "UnmarshalJSON", "key type check")
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return parseFailure(err, fmt.Sprintf("decode property %q", key))
		}
		if key == IDKey {
			id, _ = val.(string)
			continue
		}
		if _, dup := props[key]; !dup {
			keys = append(keys, key)
		}
		props[key] = val
	}
	if _, err := dec.Token(); err != nil {
		return parseFailure(err, "read closing token")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.id == "" {
		m.id = id
	}
	m.keys = keys
	m.props = props
	return nil
}

func parseFailure(err error, action string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err), "Message", "UnmarshalJSON", action)
}
