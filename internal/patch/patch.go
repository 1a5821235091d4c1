// Package patch carries tri-state optional fields through JSON decoding.
//
// A partial-update payload must distinguish three cases for every optional
// field: the key was omitted (leave the stored value alone), the key was an
// explicit null (clear the stored value), and the key carried a value.
// encoding/json only calls UnmarshalJSON for keys that are present, which is
// what makes the Present flag reliable.
package patch

import "encoding/json"

// String is a tri-state string field.
type String struct {
	Present bool
	Value   *string
}

// Set returns a String carrying a value.
func Set(v string) String {
	return String{Present: true, Value: &v}
}

// Null returns a String carrying an explicit null.
func Null() String {
	return String{Present: true}
}

func (s *String) UnmarshalJSON(data []byte) error {
	s.Present = true
	if string(data) == "null" {
		s.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.Value = &v
	return nil
}

func (s String) MarshalJSON() ([]byte, error) {
	if s.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*s.Value)
}
