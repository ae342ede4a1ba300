package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Candidate is one entry of the holdings file. The file is produced by an
// external spreadsheet export, so every field is treated as untrusted.
type Candidate struct {
	Rank        Rank   `json:"rank"`
	BaseTicker  string `json:"baseTicker"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Logo        Logo   `json:"logo,omitempty"`
}

// UnmarshalJSON decodes each field on its own. A field of the wrong JSON type
// is left empty instead of failing the whole record, and a record that is not
// an object decodes to the zero Candidate.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	*c = Candidate{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil
	}

	if raw, ok := fields["rank"]; ok {
		_ = c.Rank.UnmarshalJSON(raw)
	}
	if raw, ok := fields["logo"]; ok {
		_ = c.Logo.UnmarshalJSON(raw)
	}
	c.BaseTicker = looseString(fields["baseTicker"])
	c.Name = looseString(fields["name"])
	c.Description = looseString(fields["description"])
	return nil
}

// looseString returns raw as a string when it is a JSON string, else "".
func looseString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Rank is a candidate's overall rank; lower is better.
// Numbers and numeric strings are accepted. Anything else (missing, null,
// booleans, free text) leaves Valid false, and such a rank compares as +Inf.
type Rank struct {
	Value float64
	Valid bool
}

// NewRank returns a valid rank.
func NewRank(v float64) Rank {
	return Rank{Value: v, Valid: true}
}

// Float returns the comparable value of the rank.
func (r Rank) Float() float64 {
	if !r.Valid || math.IsNaN(r.Value) {
		return math.Inf(1)
	}
	return r.Value
}

// Less reports whether r ranks strictly better than other.
func (r Rank) Less(other Rank) bool {
	return r.Float() < other.Float()
}

func (r *Rank) UnmarshalJSON(data []byte) error {
	*r = Rank{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if f, err := n.Float64(); err == nil {
			*r = NewRank(f)
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) {
			*r = NewRank(f)
		}
	}
	return nil
}

func (r Rank) MarshalJSON() ([]byte, error) {
	if !r.Valid || math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// Attachment is one element of an attachment-style logo field.
type Attachment struct {
	URL        string      `json:"url,omitempty"`
	Thumbnails *Thumbnails `json:"thumbnails,omitempty"`
}

type Thumbnails struct {
	Small *Thumbnail `json:"small,omitempty"`
	Large *Thumbnail `json:"large,omitempty"`
}

type Thumbnail struct {
	URL string `json:"url,omitempty"`
}

// Logo holds either a direct URL or an ordered list of attachments.
// Other JSON shapes decode to the zero Logo.
type Logo struct {
	URL         string
	Attachments []Attachment
}

func (l *Logo) UnmarshalJSON(data []byte) error {
	*l = Logo{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &l.URL)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		for _, item := range raw {
			var a Attachment
			// A malformed element keeps its slot so "first element" stays positional.
			_ = json.Unmarshal(item, &a)
			l.Attachments = append(l.Attachments, a)
		}
	}
	return nil
}

func (l Logo) MarshalJSON() ([]byte, error) {
	if l.URL != "" {
		return json.Marshal(l.URL)
	}
	if len(l.Attachments) > 0 {
		return json.Marshal(l.Attachments)
	}
	return []byte("null"), nil
}
