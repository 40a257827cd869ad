package notes

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	fileAddressPath = "basic.file_address"
	titlePath       = "basic.title"
	methodPath      = "method"
	corePicPath     = "method.core_pic"
)

var (
	// ErrPaperNotFound is returned when a paper id has no entry in the collection.
	ErrPaperNotFound = errors.New("paper not found")
	// ErrPaperNotObject is returned when a paper entry cannot hold fields.
	ErrPaperNotObject = errors.New("paper entry is not a JSON object")
)

// Paper is the raw JSON of a single paper. Only a few fields are read or
// written through the accessors below; everything else is left as is.
type Paper []byte

// IsObject reports whether the paper is a JSON object.
func (p Paper) IsObject() bool {
	return gjson.ParseBytes(p).IsObject()
}

// Present reports whether the entry holds a usable value, treating null,
// false, 0 and "" as absent.
func (p Paper) Present() bool {
	return Truthy(p)
}

// FileAddress returns basic.file_address when it is a string.
func (p Paper) FileAddress() (string, bool) {
	return p.stringAt(fileAddressPath)
}

// Title returns basic.title when it is a string.
func (p Paper) Title() (string, bool) {
	return p.stringAt(titlePath)
}

// CorePic returns method.core_pic, or "" when it is unset or not a string.
func (p Paper) CorePic() string {
	name, _ := p.stringAt(corePicPath)
	return name
}

// WithCorePic returns a copy with method.core_pic set to name, creating the
// method object if needed.
func (p Paper) WithCorePic(name string) (Paper, error) {
	if !p.IsObject() {
		return nil, ErrPaperNotObject
	}
	out := append([]byte(nil), p...)
	var err error
	if !gjson.GetBytes(out, methodPath).IsObject() {
		out, err = sjson.SetRawBytes(out, methodPath, []byte("{}"))
		if err != nil {
			return nil, fmt.Errorf("creating method object: %w", err)
		}
	}
	out, err = sjson.SetBytes(out, corePicPath, name)
	if err != nil {
		return nil, fmt.Errorf("setting core_pic: %w", err)
	}
	return Paper(out), nil
}

// WithoutCorePic returns a copy with method.core_pic removed.
func (p Paper) WithoutCorePic() (Paper, error) {
	if !gjson.GetBytes(p, corePicPath).Exists() {
		return p, nil
	}
	out, err := sjson.DeleteBytes(append([]byte(nil), p...), corePicPath)
	if err != nil {
		return nil, fmt.Errorf("removing core_pic: %w", err)
	}
	return Paper(out), nil
}

func (p Paper) stringAt(path string) (string, bool) {
	r := gjson.GetBytes(p, path)
	if r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}

// Truthy reports whether raw JSON is anything other than a missing value,
// null, false, 0 or "".
func Truthy(raw []byte) bool {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return false
	}
	r := gjson.ParseBytes(raw)
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	}
	return true
}

// IDFromJSON turns a raw JSON paper id into a collection key. Strings are
// used as is and numbers by their literal text. Anything else, or a falsy
// value, yields false.
func IDFromJSON(raw []byte) (string, bool) {
	if !Truthy(raw) {
		return "", false
	}
	r := gjson.ParseBytes(raw)
	switch r.Type {
	case gjson.String:
		return r.Str, true
	case gjson.Number:
		return r.Raw, true
	}
	return "", false
}
