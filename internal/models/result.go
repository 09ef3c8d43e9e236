package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnknownDate is the date bucket for papers without a usable published timestamp.
const UnknownDate = "unknown"

// KeywordMatch pairs a watched keyword with the papers it matched in one evaluation pass.
type KeywordMatch struct {
	Keyword WatchedKeyword `json:"keyword"`
	Papers  []Paper        `json:"papers"`
}

// MatchSet is the keyword -> papers mapping produced by one match pass.
// Entries follow the order of the keywords given to the matcher.
type MatchSet []KeywordMatch

// Get returns the papers matched by keyword (compared by normalized key).
func (m MatchSet) Get(keyword string) ([]Paper, bool) {
	key := NormalizeKeyword(keyword)
	for _, km := range m {
		if km.Keyword.Key() == key {
			return km.Papers, true
		}
	}
	return nil, false
}

// Total returns the number of (keyword, paper) pairs.
func (m MatchSet) Total() int {
	n := 0
	for _, km := range m {
		n += len(km.Papers)
	}
	return n
}

// MarshalJSON encodes the set as an ordered object keyword -> [paper].
func (m MatchSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, km := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, km.Keyword.Keyword); err != nil {
			return nil, err
		}
		if err := writePapers(&buf, km.Papers); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// KeywordGroup holds the papers of one date bucket that matched one keyword.
type KeywordGroup struct {
	Keyword string
	Papers  []Paper
}

// DateGroup holds the keyword groups of one publication day.
type DateGroup struct {
	// Date is a YYYY-MM-DD key or UnknownDate.
	Date     string
	Keywords []KeywordGroup
}

// GroupedResult is the date -> keyword -> papers structure, most recent date first.
type GroupedResult struct {
	Dates []DateGroup
}

// Empty reports whether the result holds no papers.
func (g GroupedResult) Empty() bool {
	for _, d := range g.Dates {
		for _, k := range d.Keywords {
			if len(k.Papers) > 0 {
				return false
			}
		}
	}
	return true
}

// Lookup returns the papers grouped under date and keyword.
func (g GroupedResult) Lookup(date, keyword string) ([]Paper, bool) {
	for _, d := range g.Dates {
		if d.Date != date {
			continue
		}
		for _, k := range d.Keywords {
			if k.Keyword == keyword {
				return k.Papers, true
			}
		}
	}
	return nil, false
}

// UniquePapers returns the number of distinct papers across all groups.
func (g GroupedResult) UniquePapers() int {
	seen := make(map[string]struct{})
	for _, d := range g.Dates {
		for _, k := range d.Keywords {
			for i := range k.Papers {
				seen[k.Papers[i].DedupKey()] = struct{}{}
			}
		}
	}
	return len(seen)
}

// MarshalJSON encodes the result as a nested object whose key order matches the group order.
func (g GroupedResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range g.Dates {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, d.Date); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, k := range d.Keywords {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, k.Keyword); err != nil {
				return nil, err
			}
			if err := writePapers(&buf, k.Papers); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the nested object form, keeping the key order of the input.
func (g *GroupedResult) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	var dates []DateGroup
	for dec.More() {
		date, err := readKey(dec)
		if err != nil {
			return err
		}
		if err := expectDelim(dec, '{'); err != nil {
			return err
		}
		group := DateGroup{Date: date}
		for dec.More() {
			kw, err := readKey(dec)
			if err != nil {
				return err
			}
			var papers []Paper
			if err := dec.Decode(&papers); err != nil {
				return fmt.Errorf("decode papers for %s/%s: %w", date, kw, err)
			}
			group.Keywords = append(group.Keywords, KeywordGroup{Keyword: kw, Papers: papers})
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
		dates = append(dates, group)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}
	g.Dates = dates
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("grouped result: expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("grouped result: expected key, got %v", tok)
	}
	return key, nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	b, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte(':')
	return nil
}

func writePapers(buf *bytes.Buffer, papers []Paper) error {
	if papers == nil {
		papers = []Paper{}
	}
	b, err := json.Marshal(papers)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
