package models

import (
	"fmt"
	"strconv"
	"strings"
)

const tableLabelPrefix = "Table "

// TableLabel returns the role name of table n, e.g. "Table 7".
func TableLabel(n int64) string {
	return fmt.Sprintf("%s%d", tableLabelPrefix, n)
}

// TableChannelName returns the channel name of table n, e.g. "table-7".
func TableChannelName(n int64) string {
	return fmt.Sprintf("table-%d", n)
}

// ParseTableLabel reverses TableLabel. Only canonical labels are accepted, so
// "Table 07" or "table 7" do not parse.
func ParseTableLabel(label string) (int64, bool) {
	rest, ok := strings.CutPrefix(label, tableLabelPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || TableLabel(n) != label {
		return 0, false
	}
	return n, true
}

// Membership is a participant's group state: Teamless, or Assigned to a label.
type Membership struct {
	label string
}

// Teamless is the state of a participant without a table.
func Teamless() Membership {
	return Membership{}
}

// Assigned is the state of a participant seated at the labelled table.
func Assigned(label string) Membership {
	return Membership{label: label}
}

// IsTeamless reports whether no table is assigned.
func (m Membership) IsTeamless() bool {
	return m.label == ""
}

// Label returns the assigned table label, or "" when teamless.
func (m Membership) Label() string {
	return m.label
}

func (m Membership) String() string {
	if m.IsTeamless() {
		return "Teamless"
	}
	return "Assigned(" + m.label + ")"
}

// TableHandle the platform objects backing one table.
type TableHandle struct {
	Number    int64  `json:"number"`
	Label     string `json:"label"`
	RoleID    string `json:"role_id"`
	ChannelID string `json:"channel_id"`
}
