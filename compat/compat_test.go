package compat

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t81dev/t81-lang/config"
	"github.com/t81dev/t81-lang/contract"
	"github.com/t81dev/t81-lang/failure"
	"github.com/t81dev/t81-lang/receipt"
	"github.com/t81dev/t81-lang/runner"
	"github.com/t81dev/t81-lang/runner/runnertest"
	"github.com/t81dev/t81-lang/smoke"
)

const vmContract = `{
  "contract_version": "1.2",
  "supported_opcodes": ["Nop", "Halt", "LoadImm", "Load", "Store", "Add", "Sub", "Mul",
                        "Div", "Mod", "Jump", "JumpIfZero", "JumpIfNotZero", "Cmp", "Trap"],
  "accepted_program_formats": [{"name": "TextV1"}, {"name": "TiscJsonV1"}]
}`

type workspace struct {
	lang string
	vm   string
}

// newWorkspace lays out sibling t81-lang and t81-vm checkouts.
func newWorkspace(t *testing.T, localContract string) workspace {
	t.Helper()
	base := t.TempDir()
	ws := workspace{lang: filepath.Join(base, "t81-lang"), vm: filepath.Join(base, "t81-vm")}

	files := map[string]string{
		filepath.Join(ws.lang, contract.LocalPath):       localContract,
		filepath.Join(ws.vm, contract.ExternalPath):      vmContract,
		filepath.Join(ws.vm, runner.DefaultBinary):       "#!/bin/sh\n",
		filepath.Join(ws.vm, smoke.DefaultSuccessVector): "LoadImm 0 7 0\nHalt 0 0 0\n",
		filepath.Join(ws.vm, smoke.DefaultFaultVector):   "Div 0 0 1\n",
	}
	for path, content := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return ws
}

func mockVM() *runnertest.Executor {
	return runnertest.New().
		OnName("git", runnertest.Exit(0, "0123abcd\n", "")).
		OnProgram("arithmetic.t81", runnertest.Exit(0, "STATE_HASH abc123\n", "")).
		OnProgram("faults.t81", runnertest.Exit(1, "", "FAULT: divide by zero\n"))
}

func TestRunPasses(t *testing.T) {
	ws := newWorkspace(t, `{"contract_version": "1.2"}`)
	fake := mockVM()

	out, err := Run(context.Background(), config.Default(ws.lang), Options{Executor: fake})

	require.NoError(t, err)
	assert.Equal(t, "abc123", out.Smoke.StateHash)
	assert.Equal(t, contract.LaneDefault, out.Lane)
	assert.Nil(t, out.Receipt)
	assert.Equal(t, []string{"make", "t81vm", "t81vm"}, fake.Names(), "default lane never queries git")
}

func TestRunFaultVectorSucceeds(t *testing.T) {
	ws := newWorkspace(t, `{"contract_version": "1.2"}`)
	fake := runnertest.New().
		OnProgram("arithmetic.t81", runnertest.Exit(0, "STATE_HASH abc123\n", "")).
		OnProgram("faults.t81", runnertest.Exit(0, "STATE_HASH def456\n", ""))

	_, err := Run(context.Background(), config.Default(ws.lang), Options{Executor: fake})

	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.UnexpectedSuccess), err)
}

func TestRunContractFailureSkipsBuild(t *testing.T) {
	ws := newWorkspace(t, `{"contract_version": "1.1"}`)
	fake := mockVM()

	_, err := Run(context.Background(), config.Default(ws.lang), Options{Executor: fake})

	assert.True(t, failure.Is(err, failure.ContractVersionMismatch), err)
	assert.False(t, failure.Is(nil, failure.Unknown))
	assert.Empty(t, fake.Calls)
}

func TestRunPinnedLane(t *testing.T) {
	ws := newWorkspace(t, `{"contract_version": "1.2", "vm_main_pin": "0123abcd"}`)
	cfg := config.Default(ws.lang)
	cfg.Lane = "pinned"
	receiptPath := filepath.Join(t.TempDir(), "receipt.cbor")

	out, err := Run(context.Background(), cfg, Options{Executor: mockVM(), ReceiptPath: receiptPath})
	require.NoError(t, err)
	assert.Equal(t, contract.LanePinned, out.Lane)

	rec, err := receipt.Read(receiptPath)
	require.NoError(t, err)
	assert.Equal(t, "1.2", rec.ContractVersion)
	assert.Equal(t, "pinned", rec.Lane)
	assert.Equal(t, "0123abcd", rec.VMRevision)
	assert.Equal(t, "abc123", rec.StateHash)
	assert.Equal(t, "FAULT: divide by zero", rec.FaultLine)
	assert.Equal(t, out.Receipt.RunID, rec.RunID)
}

func TestRunPinnedLaneMismatch(t *testing.T) {
	ws := newWorkspace(t, `{"contract_version": "1.2", "vm_main_pin": "ffff0000"}`)
	cfg := config.Default(ws.lang)
	cfg.Lane = "PINNED"
	fake := mockVM()

	_, err := Run(context.Background(), cfg, Options{Executor: fake})

	require.Error(t, err)
	assert.Equal(t, failure.PinnedRevisionMismatch, failure.KindOf(err))
	assert.Equal(t, "Pinned lane VM commit mismatch: vm=0123abcd expected=ffff0000", err.Error())
	assert.Equal(t, []string{"git"}, fake.Names())
}

func TestRunMissingArtifacts(t *testing.T) {
	ws := newWorkspace(t, `{"contract_version": "1.2"}`)

	cfg := config.Default(ws.lang)
	cfg.VM.Dir = filepath.Join(ws.lang, "nowhere")
	_, err := Run(context.Background(), cfg, Options{Executor: mockVM()})
	assert.Equal(t, failure.MissingArtifact, failure.KindOf(err))
	assert.Contains(t, err.Error(), "t81-vm path not found")

	require.NoError(t, os.Remove(filepath.Join(ws.vm, contract.ExternalPath)))
	_, err = Run(context.Background(), config.Default(ws.lang), Options{Executor: mockVM()})
	assert.Equal(t, failure.MissingArtifact, failure.KindOf(err))
	assert.Contains(t, err.Error(), "Missing VM contract file")
}

func TestRunReceiptWithoutGit(t *testing.T) {
	ws := newWorkspace(t, `{"contract_version": "1.2"}`)
	fake := runnertest.New().
		OnName("git", runnertest.Exit(128, "", "fatal: not a git repository\n")).
		OnProgram("arithmetic.t81", runnertest.Exit(0, "STATE_HASH abc123\n", "")).
		OnProgram("faults.t81", runnertest.Exit(1, "", "FAULT: trap\n"))

	out, err := Run(context.Background(), config.Default(ws.lang), Options{
		Executor:    fake,
		ReceiptPath: filepath.Join(t.TempDir(), "r.cbor"),
	})

	require.NoError(t, err)
	assert.Empty(t, out.Receipt.VMRevision)
}
