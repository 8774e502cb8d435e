package db

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPrinted Status = "printed"
	StatusFailed  Status = "failed"
)

// Task is one unit of work to be printed. Rows are handed out as value
// copies; the store is the only writer.
type Task struct {
	ID        int64
	Text      string
	Priority  int
	Status    Status
	Attempts  int
	LastError string
	Metadata  Metadata
	CreatedAt time.Time
	PrintedAt *time.Time
}

// Metadata carries the known optional fields plus any extra keys a client
// stored. Unknown fields survive a round trip untouched.
type Metadata struct {
	Language string
	Source   string
	Extra    map[string]json.RawMessage
}

func (m Metadata) IsZero() bool {
	return m.Language == "" && m.Source == "" && len(m.Extra) == 0
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Language != "" {
		b, err := json.Marshal(m.Language)
		if err != nil {
			return nil, err
		}
		out["language"] = b
	}
	if m.Source != "" {
		b, err := json.Marshal(m.Source)
		if err != nil {
			return nil, err
		}
		out["source"] = b
	}
	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["language"]; ok {
		if err := json.Unmarshal(v, &m.Language); err == nil {
			delete(raw, "language")
		}
	}
	if v, ok := raw["source"]; ok {
		if err := json.Unmarshal(v, &m.Source); err == nil {
			delete(raw, "source")
		}
	}
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}

// Stats is the aggregate view over the tasks table.
type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Printed int `json:"printed"`
	Failed  int `json:"failed"`
	Today   int `json:"today"`
}
