package parser

import (
	"regexp"
	"strings"
)

var (
	systemNameRe     = regexp.MustCompile(`System Name.*: (.*)`)
	systemCapacityRe = regexp.MustCompile(`Capacity.*: (\d+[G])`)
	softwareVersRe   = regexp.MustCompile(`Software Version: (1830PSS.*)`)
	osVersionRe      = regexp.MustCompile(`Version (\S+)`)
	standbyECRe      = regexp.MustCompile(`(\d/\d+)[ ]+([A-Za-z0-9]+)[ ]+([A-Za-z]+)[ ]+((?i:yes|no))`)
	activeECRe       = regexp.MustCompile(`(\d/\d+)[ ]+([A-Za-z0-9]+)[ ]+(Active)`)
)

// FactsCommands are the read-only commands whose output feeds ParseFacts,
// in argument order.
var FactsCommands = []string{
	"show general name",
	"show version",
	"show redundancy",
}

// Redundancy describes the equipment controller pair of a shelf.
type Redundancy struct {
	ActiveSlot   string `json:"active_ec_slot,omitempty"`
	ActiveType   string `json:"active_ec_type,omitempty"`
	StandbySlot  string `json:"standby_ec_slot,omitempty"`
	StandbyType  string `json:"standby_ec_type,omitempty"`
	StandbyState string `json:"standby_ec_state,omitempty"`
	StandbyReady bool   `json:"standby_ec_ready"`
}

// Facts collects identity information about a network element.
type Facts struct {
	NetworkOS        string     `json:"network_os"`
	NetworkOSVersion string     `json:"network_os_version,omitempty"`
	SystemName       string     `json:"system_name,omitempty"`
	SoftwareVersion  string     `json:"software_version,omitempty"`
	Capacity         string     `json:"capacity,omitempty"`
	Redundancy       Redundancy `json:"redundancy"`
}

func firstGroup(re *regexp.Regexp, data string) (string, bool) {
	m := re.FindStringSubmatch(data)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// ParseSystemName extracts the value of the "System Name" line.
func ParseSystemName(data string) (string, bool) {
	return firstGroup(systemNameRe, data)
}

// ParseSystemCapacity extracts a capacity such as "480G".
func ParseSystemCapacity(data string) (string, bool) {
	return firstGroup(systemCapacityRe, data)
}

// ParseVersion extracts the 1830PSS software version string.
func ParseVersion(data string) (string, bool) {
	return firstGroup(softwareVersRe, data)
}

// ParseNetworkOSVersion extracts the first "Version <token>" value with a
// trailing comma removed.
func ParseNetworkOSVersion(data string) (string, bool) {
	v, ok := firstGroup(osVersionRe, data)
	return strings.TrimRight(v, ","), ok
}

// ParseRedundancy searches the whole block for the active controller and for
// the first controller row that is not the active one.
func ParseRedundancy(data string) Redundancy {
	var r Redundancy

	if m := activeECRe.FindStringSubmatch(data); m != nil {
		r.ActiveSlot, r.ActiveType = m[1], m[2]
	}

	for _, m := range standbyECRe.FindAllStringSubmatch(data, -1) {
		if m[3] == "Active" {
			continue
		}
		r.StandbySlot, r.StandbyType, r.StandbyState = m[1], m[2], m[3]
		r.StandbyReady = strings.EqualFold(m[4], "yes")
		break
	}
	return r
}

// ParseFacts combines the outputs of FactsCommands.
func ParseFacts(general, version, redundancy string) *Facts {
	f := &Facts{NetworkOS: "pss"}
	f.SystemName, _ = ParseSystemName(general)
	f.SoftwareVersion, _ = ParseVersion(version)
	f.NetworkOSVersion, _ = ParseNetworkOSVersion(version)
	if c, ok := ParseSystemCapacity(version); ok {
		f.Capacity = c
	} else {
		f.Capacity, _ = ParseSystemCapacity(general)
	}
	f.Redundancy = ParseRedundancy(redundancy)
	return f
}

// ToLines splits every response on newlines, preserving response order.
func ToLines(responses []string) [][]string {
	lines := make([][]string, len(responses))
	for i, r := range responses {
		lines[i] = strings.Split(r, "\n")
	}
	return lines
}
