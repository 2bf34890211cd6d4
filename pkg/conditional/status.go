package conditional

import (
	"fmt"
	"sort"
	"strings"

	"github.com/trungdtbk/pss1830/pkg/parser"
	"github.com/trungdtbk/pss1830/pkg/util"
)

// Valid values for the structured condition fields
var (
	OperationChoices       = []string{"Abort", "Activate", "Audit", "Backout", "Commit", "Load"}
	OperationStatusChoices = []string{"Completed", "In Progress", "Failure"}
)

// StatusCondition is a structured wait condition over an UpgradeStatus. Every
// non-empty field must match for the condition to hold.
type StatusCondition struct {
	Operation        string `yaml:"operation,omitempty" json:"operation,omitempty"`
	OperationStatus  string `yaml:"operation_status,omitempty" json:"operation_status,omitempty"`
	CommittedRelease string `yaml:"committed_release,omitempty" json:"committed_release,omitempty"`
	Stdout           string `yaml:"stdout,omitempty" json:"stdout,omitempty"`
}

// ParseStatusCondition converts a decoded field mapping into a
// StatusCondition. Anything that is not a mapping of the known keys to
// scalar values is malformed. Null values leave the field unset.
func ParseStatusCondition(v any) (*StatusCondition, error) {
	var fields map[string]any
	switch m := v.(type) {
	case map[string]any:
		fields = m
	case map[string]string:
		fields = make(map[string]any, len(m))
		for k, s := range m {
			fields[k] = s
		}
	case *StatusCondition:
		if m == nil {
			return nil, util.NewConditionalError("<nil>", "wait condition must be a mapping")
		}
		c := *m
		return &c, c.Validate()
	default:
		return nil, util.NewConditionalError(fmt.Sprintf("%v", v), "wait condition must be a mapping")
	}

	c := &StatusCondition{}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		raw := fields[k]
		var value string
		switch x := raw.(type) {
		case nil:
			continue
		case string:
			value = x
		case int, int64, float64, bool:
			value = fmt.Sprint(x)
		default:
			return nil, util.NewConditionalError(fmt.Sprintf("%v", v), fmt.Sprintf("field %s must be a scalar", k))
		}
		switch k {
		case "operation":
			c.Operation = value
		case "operation_status":
			c.OperationStatus = value
		case "committed_release":
			c.CommittedRelease = value
		case "stdout":
			c.Stdout = value
		default:
			return nil, util.NewConditionalError(fmt.Sprintf("%v", v), fmt.Sprintf("unknown field %s", k))
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects unknown enum values and a condition with no fields set.
func (c *StatusCondition) Validate() error {
	if c.IsEmpty() {
		return util.NewConditionalError(c.String(), "at least one field must be set")
	}
	if c.Operation != "" && !contains(OperationChoices, c.Operation) {
		return util.NewConditionalError(c.String(),
			fmt.Sprintf("operation must be one of %s", strings.Join(OperationChoices, ", ")))
	}
	if c.OperationStatus != "" && !contains(OperationStatusChoices, c.OperationStatus) {
		return util.NewConditionalError(c.String(),
			fmt.Sprintf("operation_status must be one of %s", strings.Join(OperationStatusChoices, ", ")))
	}
	return nil
}

// IsEmpty reports whether no field is set.
func (c *StatusCondition) IsEmpty() bool {
	return c == nil || *c == StatusCondition{}
}

// Evaluate reports whether status satisfies every set field. A field that
// the status does not carry is a mismatch. Stdout matches when the raw
// status output contains it.
func (c *StatusCondition) Evaluate(status *parser.UpgradeStatus) bool {
	if c.IsEmpty() || status == nil {
		return false
	}
	checks := []struct {
		field parser.Field
		want  string
	}{
		{parser.FieldOperation, c.Operation},
		{parser.FieldOperationStatus, c.OperationStatus},
		{parser.FieldCommittedRelease, c.CommittedRelease},
	}
	for _, chk := range checks {
		if chk.want == "" {
			continue
		}
		got, ok := status.Get(chk.field)
		if !ok || got != chk.want {
			return false
		}
	}
	if c.Stdout != "" && !strings.Contains(status.Raw(), c.Stdout) {
		return false
	}
	return true
}

// String renders the set fields as "{key: value, ...}".
func (c *StatusCondition) String() string {
	if c == nil {
		return "{}"
	}
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", k, v))
		}
	}
	add("operation", c.Operation)
	add("operation_status", c.OperationStatus)
	add("committed_release", c.CommittedRelease)
	add("stdout", c.Stdout)
	return "{" + strings.Join(parts, ", ") + "}"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
