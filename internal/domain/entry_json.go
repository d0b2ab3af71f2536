package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// entryFields has Entry's layout without its methods.
type entryFields Entry

var entryKeys = map[string]struct{}{
	"crawl_datetime": {}, "title": {}, "authors": {}, "subjects": {}, "comment": {},
	"pdf_link": {}, "code": {}, "arxiv_abs_link": {}, "arxiv_html_link": {},
	"abstract": {}, "introduction": {}, "llm_summary": {}, "llm_score": {}, "llm_error": {},
}

// UnmarshalJSON accepts code links either as a list or as one comma-joined
// string, and keeps keys it does not know in Extra.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var wire struct {
		entryFields
		CodeLinks json.RawMessage `json:"code"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	links, err := decodeCodeLinks(wire.CodeLinks)
	if err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var extra map[string]json.RawMessage
	for k, v := range raw {
		if _, ok := entryKeys[k]; ok {
			continue
		}
		if extra == nil {
			extra = map[string]json.RawMessage{}
		}
		extra[k] = v
	}

	*e = Entry(wire.entryFields)
	e.CodeLinks = links
	e.Extra = extra
	return nil
}

func decodeCodeLinks(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var joined string
		if err := json.Unmarshal(raw, &joined); err != nil {
			return nil, err
		}
		var links []string
		for _, part := range strings.Split(joined, ",") {
			if part = strings.TrimSpace(part); part != "" {
				links = append(links, part)
			}
		}
		return links, nil
	}
	var links []string
	if err := json.Unmarshal(raw, &links); err != nil {
		return nil, fmt.Errorf("decode code links: %w", err)
	}
	return links, nil
}

// MarshalJSON writes the known fields in declaration order, then any extra keys
// sorted by name.
func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entryFields(e)); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	if len(e.Extra) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(e.Extra))
	for k := range e.Extra {
		if _, ok := entryKeys[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out = out[:len(out)-1]
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out = append(out, ',')
		out = append(out, name...)
		out = append(out, ':')
		out = append(out, e.Extra[k]...)
	}
	return append(out, '}'), nil
}
