package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Status tracks where a report is in its lifecycle.
type Status string

const (
	// StatusUnderReview is the initial status of every report.
	StatusUnderReview Status = "Em análise"

	// StatusInProgress means an administrator has started work.
	StatusInProgress Status = "Em andamento"

	// StatusCompleted means the issue is resolved. Entering it stamps CompletedAt.
	StatusCompleted Status = "Concluído"
)

var statuses = []Status{StatusUnderReview, StatusInProgress, StatusCompleted}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus accepts either the stored label or a short English alias.
func ParseStatus(s string) (Status, error) {
	switch s {
	case string(StatusUnderReview), "under_review":
		return StatusUnderReview, nil
	case string(StatusInProgress), "in_progress":
		return StatusInProgress, nil
	case string(StatusCompleted), "completed":
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Priority is the triage priority set by an administrator. The zero value means unset.
type Priority string

const (
	PriorityUnset  Priority = ""
	PriorityLow    Priority = "Baixa"
	PriorityMedium Priority = "Média"
	PriorityHigh   Priority = "Alta"
	PriorityUrgent Priority = "Urgente"
)

// Valid reports whether p is unset or one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityUnset, PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ParsePriority accepts either the stored label or a short English alias.
// An empty string clears the priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "":
		return PriorityUnset, nil
	case string(PriorityLow), "low":
		return PriorityLow, nil
	case string(PriorityMedium), "medium":
		return PriorityMedium, nil
	case string(PriorityHigh), "high":
		return PriorityHigh, nil
	case string(PriorityUrgent), "urgent":
		return PriorityUrgent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// Category classifies the civic issue. Unknown values are kept as-is on
// decode since the submission side owns the list.
type Category string

const (
	CategoryPothole     Category = "Pothole"
	CategoryPublicWorks Category = "Public Works"
	CategoryWater       Category = "Water/Sewage"
	CategoryPower       Category = "Power/Lighting"
	CategorySanitation  Category = "Sanitation"
	CategoryHealth      Category = "Health"
	CategorySecurity    Category = "Security"
	CategoryTransit     Category = "Transit"
	CategoryOther       Category = "Other"
)

// MapLocation is the geolocation captured with the report.
type MapLocation struct {
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Accuracy  *float64        `json:"accuracy,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Extra     json.RawMessage `json:"extra,omitempty"`
}

// Comment is one entry of a report's append-only thread.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Report is a citizen-submitted civic issue. The id may be stored as a JSON
// string or number; it is held as a string and written back in the form it
// was read.
type Report struct {
	ID              string       `json:"id"`
	Message         string       `json:"message"`
	Category        Category     `json:"category"`
	AddressLocation string       `json:"addressLocation"`
	MapLocation     *MapLocation `json:"mapLocation,omitempty"`
	Image           string       `json:"image,omitempty"`
	Status          Status       `json:"status"`
	Priority        Priority     `json:"priority,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	CompletedAt     *time.Time   `json:"completedAt,omitempty"`
	AuthorEmail     *string      `json:"authorEmail,omitempty"`
	Comments        []Comment    `json:"comments"`

	numericID bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Report) UnmarshalJSON(b []byte) error {
	type plain Report
	aux := struct {
		*plain
		ID json.RawMessage `json:"id"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	id, numeric, err := decodeID(aux.ID)
	if err != nil {
		return err
	}
	r.ID, r.numericID = id, numeric
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	return json.Marshal(struct {
		plain
		ID any `json:"id"`
	}{plain(r), encodeID(r.ID, r.numericID)})
}

// validate checks the closed enums after decode.
func (r *Report) validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: report %s: unknown status %q", ErrMalformedRecord, r.ID, r.Status)
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("%w: report %s: unknown priority %q", ErrMalformedRecord, r.ID, r.Priority)
	}
	return nil
}

// Notification is an author-facing record of a status change. ID and
// ReportID keep their stored string or number form like Report.ID.
type Notification struct {
	ID        string    `json:"id"`
	UserEmail string    `json:"userEmail"`
	ReportID  string    `json:"reportId"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`

	numericID       bool
	numericReportID bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Notification) UnmarshalJSON(b []byte) error {
	type plain Notification
	aux := struct {
		*plain
		ID       json.RawMessage `json:"id"`
		ReportID json.RawMessage `json:"reportId"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	if n.ID, n.numericID, err = decodeID(aux.ID); err != nil {
		return err
	}
	if n.ReportID, n.numericReportID, err = decodeID(aux.ReportID); err != nil {
		return fmt.Errorf("reportId: %w", err)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Notification) MarshalJSON() ([]byte, error) {
	type plain Notification
	return json.Marshal(struct {
		plain
		ID       any `json:"id"`
		ReportID any `json:"reportId"`
	}{plain(n), encodeID(n.ID, n.numericID), encodeID(n.ReportID, n.numericReportID)})
}

// decodeID accepts a JSON string or number. null and absent decode as "".
func decodeID(raw json.RawMessage) (id string, numeric bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", false, nil
	}
	if raw[0] == '"' {
		err = json.Unmarshal(raw, &id)
		return id, false, err
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return "", false, fmt.Errorf("id is neither string nor number: %s", raw)
	}
	return num.String(), true, nil
}

func encodeID(id string, numeric bool) any {
	if numeric {
		return json.Number(id)
	}
	return id
}

// DecodeReports parses a stored collection. Elements that fail to decode
// or validate are reported through skipped and returned raw in preserved so
// a later write can carry them forward unchanged. Only a blob that is not a
// JSON array at all is an error.
func DecodeReports(data []byte, skipped func(index int, err error)) (reports []Report, preserved []json.RawMessage, err error) {
	if len(data) == 0 {
		return nil, nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	reports = make([]Report, 0, len(raw))
	for i, elem := range raw {
		var r Report
		err := json.Unmarshal(elem, &r)
		if err == nil {
			err = r.validate()
		} else {
			err = fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
		if err != nil {
			if skipped != nil {
				skipped(i, err)
			}
			preserved = append(preserved, elem)
			continue
		}
		if r.Comments == nil {
			r.Comments = []Comment{}
		}
		reports = append(reports, r)
	}
	return reports, preserved, nil
}

// EncodeReports serializes a collection, followed by any preserved raw
// elements. A nil slice encodes as an empty array.
func EncodeReports(reports []Report, preserved ...json.RawMessage) ([]byte, error) {
	out := make([]json.RawMessage, 0, len(reports)+len(preserved))
	for i := range reports {
		b, err := json.Marshal(reports[i])
		if err != nil {
			return nil, fmt.Errorf("encode report %s: %w", reports[i].ID, err)
		}
		out = append(out, b)
	}
	out = append(out, preserved...)
	return json.Marshal(out)
}
