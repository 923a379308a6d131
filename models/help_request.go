package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// HelpRequestKeyPrefix prefixes every queued request key in the store.
	HelpRequestKeyPrefix = "help_request:"
	// HelpRequestIDLength length of a request id.
	HelpRequestIDLength = 8

	helpRequestFieldCount = 4
)

// HelpRequest a queued request for help. Stored as the list (description, link, attribution, created_at_ms).
type HelpRequest struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Attribution string `json:"attribution"` // table label, or the requester's display name
	CreatedAt   int64  `json:"created_at"`  // milliseconds since epoch
}

// HelpRequestKey returns the store key of request id.
func HelpRequestKey(id string) string {
	return HelpRequestKeyPrefix + id
}

// HelpRequestIDFromKey strips the key prefix.
func HelpRequestIDFromKey(key string) (string, bool) {
	return strings.CutPrefix(key, HelpRequestKeyPrefix)
}

// ValidHelpRequestID reports whether id has the shape of a generated id.
func ValidHelpRequestID(id string) bool {
	if len(id) != HelpRequestIDLength {
		return false
	}
	for _, c := range id {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// Fields returns the stored list representation.
func (r HelpRequest) Fields() []string {
	return []string{r.Description, r.Link, r.Attribution, strconv.FormatInt(r.CreatedAt, 10)}
}

// Time returns CreatedAt as a time.Time.
func (r HelpRequest) Time() time.Time {
	return time.UnixMilli(r.CreatedAt)
}

// FromTable reports whether the request was attributed to a table.
func (r HelpRequest) FromTable() bool {
	_, ok := ParseTableLabel(r.Attribution)
	return ok
}

// DecodeError a stored request that cannot be used.
type DecodeError struct {
	Key    string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.Key, e.Reason)
}

// DecodeHelpRequest decodes the stored list under key. Either the full record
// or a *DecodeError is returned, never a partial record.
func DecodeHelpRequest(key string, fields []string) (HelpRequest, error) {
	id, ok := HelpRequestIDFromKey(key)
	if !ok || id == "" {
		return HelpRequest{}, &DecodeError{Key: key, Reason: "not a help request key"}
	}
	if len(fields) != helpRequestFieldCount {
		return HelpRequest{}, &DecodeError{Key: key, Reason: fmt.Sprintf("expected %d fields, got %d", helpRequestFieldCount, len(fields))}
	}

	ts, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return HelpRequest{}, &DecodeError{Key: key, Reason: "malformed timestamp " + strconv.Quote(fields[3])}
	}
	if ts <= 0 {
		return HelpRequest{}, &DecodeError{Key: key, Reason: "zero timestamp"}
	}

	return HelpRequest{
		ID:          id,
		Description: fields[0],
		Link:        fields[1],
		Attribution: fields[2],
		CreatedAt:   ts,
	}, nil
}
