// Package models defines the planner's record types.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Kind names a record flavor. It doubles as the bucket namespace.
type Kind string

const (
	KindNote Kind = "notes"
	KindJob  Kind = "jobs"
)

// ParseKind maps user input to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "note", "notes":
		return KindNote, nil
	case "job", "jobs":
		return KindJob, nil
	}
	return "", fmt.Errorf("models: unknown record kind %q", s)
}

// Record is implemented by Note and Job only. The two variants share nothing
// but an ID; quote totals treat a note as worth zero.
type Record interface {
	RecordID() ID
	Kind() Kind
	Validate() error
	Amount() Money
	isRecord()
}

// ID identifies a record within its day bucket. Numeric ids (creation
// timestamps) are written as JSON numbers, anything else as a string.
type ID string

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("models: id must be a number or string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) numeric() bool {
	s := string(id)
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 63)
	return err == nil
}

// IDGenerator hands out millisecond-timestamp ids that never repeat within
// the process, even when two records are created in the same millisecond.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGenerator returns a generator reading the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns a fresh id.
func (g *IDGenerator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return ID(strconv.FormatInt(ms, 10))
}

var notBlank = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_blank", "cannot be blank")
	}
	return nil
})
