// Package payload converts event metadata between its structured form and the
// text stored in the activities table.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// RawKey is the key of the wrapper Decode returns for text that is not JSON.
const RawKey = "raw"

// Encode serializes v as JSON text. A nil value encodes to nil so that the
// column stays NULL.
func Encode(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// Decode materializes stored metadata. Text is parsed as JSON; text that does
// not parse is returned as {"raw": text}. Values that are already structured
// are returned unchanged. Decode never fails.
func Decode(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case *string:
		if t == nil {
			return nil
		}
		return parse(*t)
	case string:
		return parse(t)
	case json.RawMessage:
		if t == nil {
			return nil
		}
		return parse(string(t))
	case []byte:
		if t == nil {
			return nil
		}
		return parse(string(t))
	default:
		return v
	}
}

func parse(text string) any {
	var out any
	if err := Unmarshal([]byte(text), &out); err != nil {
		return map[string]any{RawKey: text}
	}
	return out
}

// Unmarshal decodes one JSON document into v. Numbers are kept as
// json.Number so integers beyond 2^53 survive a decode/encode cycle.
func Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("invalid character after top-level value")
	}
	return nil
}
