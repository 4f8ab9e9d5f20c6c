package contract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t81dev/t81-lang/failure"
)

const vmContractJSON = `{
  "contract_version": "1.2",
  "supported_opcodes": ["Nop", "Halt", "LoadImm", "Load", "Store", "Add", "Sub", "Mul",
                        "Div", "Mod", "Jump", "JumpIfZero", "JumpIfNotZero", "Cmp", "Trap"],
  "accepted_program_formats": [
    {"name": "TextV1", "extension": ".t81"},
    {"name": "TiscJsonV1", "extension": ".tisc.json"}
  ],
  "notes": "extra fields are ignored"
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadLocal(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, LocalPath, `{"contract_version": " 1.2 ", "vm_main_pin": "abc123"}`)

	c, err := LoadLocal(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2", c.ContractVersion.Trimmed())
	assert.Equal(t, "abc123", c.VMMainPin)
	assert.Equal(t, path, c.Path)
}

func TestLoadLocalNumericVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.json", `{"contract_version": 1.2}`)

	c, err := LoadLocal(path)
	require.NoError(t, err)
	assert.Equal(t, Version("1.2"), c.ContractVersion)
	assert.Empty(t, c.VMMainPin)
}

func TestLoadLocalMissing(t *testing.T) {
	_, err := LoadLocal(filepath.Join(t.TempDir(), LocalPath))
	require.Error(t, err)
	assert.Equal(t, failure.MissingArtifact, failure.KindOf(err))
	assert.Contains(t, err.Error(), "Missing local runtime contract marker")
}

func TestLoadExternal(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ExternalPath, vmContractJSON)

	c, err := LoadExternal(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2", c.ContractVersion.Trimmed())
	assert.Len(t, c.SupportedOpcodes, 15)
	assert.Equal(t, []string{"TextV1", "TiscJsonV1"}, c.FormatNames())
}

func TestLoadExternalYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "vm-compatibility.yaml", `
contract_version: "1.2"
supported_opcodes: [Nop, Halt]
accepted_program_formats:
  - name: TextV1
`)

	c, err := LoadExternal(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2", c.ContractVersion.Trimmed())
	assert.Equal(t, []string{"Nop", "Halt"}, c.SupportedOpcodes)
	assert.Equal(t, []string{"TextV1"}, c.FormatNames())
}

func TestLoadYAMLKeepsNumberText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "vm-compatibility.yml", `
contract_version: 1.10
supported_opcodes: [Nop, Halt]
accepted_program_formats:
  - name: TextV1
`)

	c, err := LoadExternal(path)
	require.NoError(t, err)
	assert.Equal(t, "1.10", c.ContractVersion.Trimmed())

	local := &Local{ContractVersion: "1.1"}
	assert.Equal(t, failure.ContractVersionMismatch, failure.KindOf(CheckVersion(local, c)))

	path = writeFile(t, dir, "runtime-contract.yaml", "contract_version: 3\nvm_main_pin: abc\n")
	l, err := LoadLocal(path)
	require.NoError(t, err)
	assert.Equal(t, "3", l.ContractVersion.Trimmed())
	assert.Equal(t, "abc", l.VMMainPin)
}

func TestLoadExternalMissing(t *testing.T) {
	_, err := LoadExternal(filepath.Join(t.TempDir(), ExternalPath))
	require.Error(t, err)
	assert.Equal(t, failure.MissingArtifact, failure.KindOf(err))
	assert.Contains(t, err.Error(), "Missing VM contract file")
}

func TestLoadExternalMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `{"contract_version": `},
		{"trailing data", `{"contract_version": "1"} {}`},
		{"top level array", `["Nop"]`},
		{"opcodes not strings", `{"supported_opcodes": [1, 2]}`},
		{"duplicate opcodes", `{"supported_opcodes": ["Nop", "Nop"]}`},
		{"format without name", `{"accepted_program_formats": [{"extension": ".t81"}]}`},
		{"version is bool", `{"contract_version": true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "vm.json", tt.content)
			_, err := LoadExternal(path)
			require.Error(t, err)
			assert.Equal(t, failure.MalformedArtifact, failure.KindOf(err), "err = %v", err)
		})
	}
}

func TestParseLane(t *testing.T) {
	assert.Equal(t, LanePinned, ParseLane("pinned"))
	assert.Equal(t, LanePinned, ParseLane(" PINNED\n"))
	assert.Equal(t, LaneDefault, ParseLane(""))
	assert.Equal(t, LaneDefault, ParseLane("pin"))
	assert.Equal(t, "pinned", LanePinned.String())
	assert.Equal(t, "default", LaneDefault.String())
}
