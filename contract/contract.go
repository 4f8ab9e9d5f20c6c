// Package contract loads and checks the runtime contract shared between
// t81-lang and t81-vm.
package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Conventional document locations.
const (
	// LocalPath is relative to the front-end repository root.
	LocalPath = "contracts/runtime-contract.json"
	// ExternalPath is relative to the VM repository root.
	ExternalPath = "docs/contracts/vm-compatibility.json"
)

// Version is a contract_version value. Documents may write it as a string
// or as a bare number; both decode to the literal text.
type Version string

func (v *Version) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Version(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("contract_version must be a string or number, got %s", data)
	}
	*v = Version(n.String())
	return nil
}

// Trimmed returns the version with surrounding whitespace removed.
func (v Version) Trimmed() string {
	return strings.TrimSpace(string(v))
}

// Local is the front-end's own contract marker.
type Local struct {
	ContractVersion Version `json:"contract_version"`
	// VMMainPin is the exact VM revision required by the pinned lane.
	VMMainPin string `json:"vm_main_pin,omitempty"`

	// Path is the file the contract was read from (set at load time).
	Path string `json:"-"`
}

// External is the contract published by the VM repository.
type External struct {
	ContractVersion        Version         `json:"contract_version"`
	SupportedOpcodes       []string        `json:"supported_opcodes"`
	AcceptedProgramFormats []ProgramFormat `json:"accepted_program_formats"`

	Path string `json:"-"`
}

// ProgramFormat is one entry of accepted_program_formats. Fields other
// than name are carried through untouched.
type ProgramFormat struct {
	Name string `json:"name"`
}

// FormatNames returns the names of all accepted program formats.
func (e *External) FormatNames() []string {
	names := make([]string, 0, len(e.AcceptedProgramFormats))
	for _, f := range e.AcceptedProgramFormats {
		names = append(names, f.Name)
	}
	return names
}

// Lane selects how strictly the VM revision is checked.
type Lane int

const (
	LaneDefault Lane = iota
	LanePinned
)

func (l Lane) String() string {
	if l == LanePinned {
		return "pinned"
	}
	return "default"
}

// ParseLane maps a VM_COMPAT_LANE value to a Lane. Only "pinned"
// (case-insensitive) selects the pinned lane.
func ParseLane(s string) Lane {
	if strings.EqualFold(strings.TrimSpace(s), "pinned") {
		return LanePinned
	}
	return LaneDefault
}
