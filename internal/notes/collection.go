package notes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrMalformed is returned when total.json is not a JSON object.
var ErrMalformed = errors.New("malformed paper collection")

const papersKey = "papers"

type field struct {
	key   string
	value json.RawMessage
}

// Collection is the ordered paper collection stored in total.json.
// Papers keep the order they were first inserted in, and top level keys
// other than "papers" are carried through untouched.
type Collection struct {
	fields []field
	ids    []string
	papers map[string]Paper
}

// NewCollection returns an empty collection whose document is {"papers": {}}.
func NewCollection() *Collection {
	return &Collection{
		fields: []field{{key: papersKey}},
		papers: make(map[string]Paper),
	}
}

// Parse decodes a total.json document. A missing or non-object "papers"
// value yields an empty collection.
func Parse(data []byte) (*Collection, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top level value is not an object", ErrMalformed)
	}

	c := &Collection{papers: make(map[string]Paper)}
	sawPapers := false
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if name != papersKey {
			c.setField(name, json.RawMessage(value.Raw))
			return true
		}
		if !sawPapers {
			c.fields = append(c.fields, field{key: papersKey})
			sawPapers = true
		}
		if value.IsObject() {
			value.ForEach(func(id, paper gjson.Result) bool {
				c.Set(id.String(), Paper(paper.Raw))
				return true
			})
		}
		return true
	})
	if !sawPapers {
		c.fields = append(c.fields, field{key: papersKey})
	}
	return c, nil
}

func (c *Collection) setField(key string, value json.RawMessage) {
	value = compact(value)
	for i := range c.fields {
		if c.fields[i].key == key {
			c.fields[i].value = value
			return
		}
	}
	c.fields = append(c.fields, field{key: key, value: value})
}

// Len returns the number of papers.
func (c *Collection) Len() int {
	return len(c.ids)
}

// IDs returns paper identifiers in document order.
func (c *Collection) IDs() []string {
	ids := make([]string, len(c.ids))
	copy(ids, c.ids)
	return ids
}

// Get returns the paper stored under id.
func (c *Collection) Get(id string) (Paper, bool) {
	p, ok := c.papers[id]
	return p, ok
}

// Set inserts or replaces a paper. Replacing keeps the paper's position.
func (c *Collection) Set(id string, p Paper) {
	if _, ok := c.papers[id]; !ok {
		c.ids = append(c.ids, id)
	}
	c.papers[id] = Paper(compact(p))
}

// MarshalJSON writes the document in its original key order.
func (c *Collection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range c.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, f.key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if f.key == papersKey {
			if err := c.writePapers(&buf); err != nil {
				return nil, err
			}
			continue
		}
		buf.Write(f.value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Collection) writePapers(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, id := range c.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(buf, id); err != nil {
			return err
		}
		buf.WriteByte(':')
		buf.Write(c.papers[id])
	}
	buf.WriteByte('}')
	return nil
}

// Indented returns the document with two space indentation.
func (c *Collection) Indented() ([]byte, error) {
	raw, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("indenting collection: %w", err)
	}
	return out.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	var encoded bytes.Buffer
	enc := json.NewEncoder(&encoded)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(key); err != nil {
		return fmt.Errorf("encoding key %q: %w", key, err)
	}
	buf.Write(bytes.TrimRight(encoded.Bytes(), "\n"))
	return nil
}

func compact(raw []byte) []byte {
	var out bytes.Buffer
	if err := json.Compact(&out, raw); err != nil {
		return append([]byte(nil), raw...)
	}
	return out.Bytes()
}
