// Package receipt records the evidence of a passing compatibility run in
// canonical CBOR, so identical runs produce comparable files.
package receipt

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// FormatVersion is bumped whenever Receipt changes shape.
const FormatVersion = 1

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("receipt: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Receipt describes one passing run.
type Receipt struct {
	Version         int    `cbor:"version"`
	RunID           string `cbor:"run_id"`
	ContractVersion string `cbor:"contract_version"`
	Lane            string `cbor:"lane"`
	// VMRevision is empty when the revision could not be determined.
	VMRevision string `cbor:"vm_revision,omitempty"`
	Binary     string `cbor:"binary"`
	StateHash  string `cbor:"state_hash"`
	FaultLine  string `cbor:"fault_line"`
}

// New returns a receipt with a fresh run id.
func New() *Receipt {
	return &Receipt{Version: FormatVersion, RunID: uuid.NewString()}
}

// Marshal serializes r to canonical CBOR.
func Marshal(r *Receipt) ([]byte, error) {
	return encMode.Marshal(r)
}

// Unmarshal deserializes a receipt.
func Unmarshal(data []byte) (*Receipt, error) {
	var r Receipt
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("receipt: unmarshal: %w", err)
	}
	if r.Version != FormatVersion {
		return nil, fmt.Errorf("receipt: unsupported version %d", r.Version)
	}
	return &r, nil
}

// Write stores r at path, creating parent directories.
func Write(path string, r *Receipt) error {
	data, err := Marshal(r)
	if err != nil {
		return fmt.Errorf("receipt: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("receipt: creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("receipt: writing %s: %w", path, err)
	}
	return nil
}

// Read loads a receipt from path.
func Read(path string) (*Receipt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("receipt: %w", err)
	}
	return Unmarshal(data)
}
