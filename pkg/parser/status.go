// Package parser extracts structured fields from 1830PSS CLI text output.
//
// Parsing is purely pattern based and never fails: labels that are missing
// from the output simply leave the corresponding field unset, so callers must
// tolerate partially populated results when the device output format drifts.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Field names one of the ten upgrade status attributes.
type Field string

const (
	FieldSoftwareServerIP  Field = "software_server_ip"
	FieldSoftwareRootDir   Field = "software_root_dir"
	FieldCommittedRelease  Field = "committed_release"
	FieldWorkingReleaseDir Field = "working_release_dir"
	FieldWorkingRelease    Field = "working_release"
	FieldActiveRelease     Field = "active_release"
	FieldOperation         Field = "operation"
	FieldOperationStatus   Field = "operation_status"
	FieldPercentCompletion Field = "percent_completion"
	FieldUpgradePathAvail  Field = "upgrade_path_avail"
)

// statusLabels lists the CLI label for each field. "Working Release Directory"
// precedes "Working Release" so the longer label is tried first on a line.
var statusLabels = []struct {
	label string
	field Field
}{
	{"Software Server IP", FieldSoftwareServerIP},
	{"Software Server Root Directory", FieldSoftwareRootDir},
	{"Committed Release", FieldCommittedRelease},
	{"Working Release Directory", FieldWorkingReleaseDir},
	{"Working Release", FieldWorkingRelease},
	{"Active Release", FieldActiveRelease},
	{"Operation", FieldOperation},
	{"Operation Status", FieldOperationStatus},
	{"Percent Completion", FieldPercentCompletion},
	{"Upgrade Path Available", FieldUpgradePathAvail},
}

var statusPatterns = func() map[Field]*regexp.Regexp {
	m := make(map[Field]*regexp.Regexp, len(statusLabels))
	for _, l := range statusLabels {
		m[l.field] = regexp.MustCompile(`^\s*` + regexp.QuoteMeta(l.label) + `[\t ]+:(.*)$`)
	}
	return m
}()

// AllFields returns every status field in display order.
func AllFields() []Field {
	fields := make([]Field, len(statusLabels))
	for i, l := range statusLabels {
		fields[i] = l.field
	}
	return fields
}

// ParseField converts a field name such as "operation_status" to a Field.
func ParseField(name string) (Field, bool) {
	for _, l := range statusLabels {
		if string(l.field) == name {
			return l.field, true
		}
	}
	return "", false
}

// Label returns the CLI label the field is parsed from.
func (f Field) Label() string {
	for _, l := range statusLabels {
		if l.field == f {
			return l.label
		}
	}
	return string(f)
}

// UpgradeStatus is an immutable snapshot of "config soft upgrade status".
// Every query yields a new instance; fields are strings or absent.
type UpgradeStatus struct {
	values map[Field]string
	raw    string
}

// NewUpgradeStatus builds a status from explicit field values. Only known
// fields are kept.
func NewUpgradeStatus(values map[Field]string) *UpgradeStatus {
	s := &UpgradeStatus{values: make(map[Field]string, len(values))}
	for _, f := range AllFields() {
		if v, ok := values[f]; ok {
			s.values[f] = v
		}
	}
	return s
}

// ParseUpgradeStatus scans the output line by line. For each label the first
// matching line wins; its value is whitespace-trimmed.
func ParseUpgradeStatus(data string) *UpgradeStatus {
	s := &UpgradeStatus{values: make(map[Field]string), raw: data}

	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		for _, l := range statusLabels {
			if _, found := s.values[l.field]; found {
				continue
			}
			if m := statusPatterns[l.field].FindStringSubmatch(line); m != nil {
				s.values[l.field] = strings.TrimSpace(m[1])
				break
			}
		}
	}
	return s
}

// Get returns the field value and whether the label was present.
func (s *UpgradeStatus) Get(f Field) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.values[f]
	return v, ok
}

// Value returns the field value, or "" when absent.
func (s *UpgradeStatus) Value(f Field) string {
	v, _ := s.Get(f)
	return v
}

// Raw returns the device output the status was parsed from.
func (s *UpgradeStatus) Raw() string {
	if s == nil {
		return ""
	}
	return s.raw
}

func (s *UpgradeStatus) Operation() string        { return s.Value(FieldOperation) }
func (s *UpgradeStatus) OperationStatus() string  { return s.Value(FieldOperationStatus) }
func (s *UpgradeStatus) CommittedRelease() string { return s.Value(FieldCommittedRelease) }
func (s *UpgradeStatus) WorkingRelease() string   { return s.Value(FieldWorkingRelease) }
func (s *UpgradeStatus) ActiveRelease() string    { return s.Value(FieldActiveRelease) }

// Present returns the fields that were found, in display order.
func (s *UpgradeStatus) Present() []Field {
	var fields []Field
	for _, f := range AllFields() {
		if _, ok := s.Get(f); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// Map returns a copy of the field values keyed by field name. Absent fields
// are nil.
func (s *UpgradeStatus) Map() map[string]*string {
	m := make(map[string]*string, len(statusLabels))
	for _, f := range AllFields() {
		if v, ok := s.Get(f); ok {
			v := v
			m[string(f)] = &v
		} else {
			m[string(f)] = nil
		}
	}
	return m
}

// MarshalJSON renders all ten fields, absent ones as null.
func (s *UpgradeStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// String summarizes the operation state as "(operation, operation_status)".
func (s *UpgradeStatus) String() string {
	return fmt.Sprintf("(%s, %s)", orNone(s.Operation()), orNone(s.OperationStatus()))
}

func orNone(v string) string {
	if v == "" {
		return "None"
	}
	return v
}
