// Package canary emits a fixed TISC JSON V1 program whose bytes never
// change, so downstream jobs can hash it to detect serialization drift.
package canary

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gowebpki/jcs"
	"github.com/tliron/commonlog"

	"github.com/t81dev/t81-lang/tisc"
)

var log = commonlog.GetLogger("t81compat.canary")

// PolicyText is the Axion policy carried by the canary, passed through as-is.
const PolicyText = "(policy (tier 2))"

// Insn is one TISC instruction with its three operands.
type Insn struct {
	Opcode tisc.Opcode `json:"opcode"`
	A      int32       `json:"a"`
	B      int64       `json:"b"`
	C      int32       `json:"c"`
}

// Program is a TISC JSON V1 document. Field order here is the order on disk.
type Program struct {
	SpecVersion     string `json:"spec_version"`
	AxionPolicyText string `json:"axion_policy_text"`
	Insns           []Insn `json:"insns"`
}

// Template returns a fresh copy of the canary program: load 7 and 3,
// add them, store the sum, load it back and halt.
func Template() *Program {
	return &Program{
		SpecVersion:     tisc.SpecVersionJSONV1,
		AxionPolicyText: PolicyText,
		Insns: []Insn{
			{Opcode: tisc.OpLoadImm, A: 0, B: 7, C: 0},
			{Opcode: tisc.OpLoadImm, A: 1, B: 3, C: 0},
			{Opcode: tisc.OpAdd, A: 2, B: 0, C: 1},
			{Opcode: tisc.OpStore, A: 10, B: 2, C: 0},
			{Opcode: tisc.OpLoad, A: 3, B: 10, C: 0},
			{Opcode: tisc.OpHalt, A: 0, B: 0, C: 0},
		},
	}
}

// Marshal encodes p with two-space indentation and a trailing newline.
func (p *Program) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("canary: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a TISC JSON V1 document.
func Decode(data []byte) (*Program, error) {
	var p Program
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("canary: decode: %w", err)
	}
	if p.SpecVersion != tisc.SpecVersionJSONV1 {
		return nil, fmt.Errorf("canary: unsupported spec_version %q", p.SpecVersion)
	}
	for i, in := range p.Insns {
		if !in.Opcode.Known() {
			return nil, fmt.Errorf("canary: insns[%d]: unknown opcode %q", i, in.Opcode)
		}
	}
	return &p, nil
}

// Emit writes the canary program to path, creating parent directories and
// replacing any existing file. It returns the bytes written.
func Emit(path string) ([]byte, error) {
	data, err := Template().Marshal()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("canary: creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("canary: writing %s: %w", path, err)
	}
	log.Debugf("emitted %d bytes to %s", len(data), path)
	return data, nil
}

// Digest returns the sha256 of the RFC 8785 canonical form of a JSON
// document, so equal programs hash equally regardless of layout.
func Digest(data []byte) (string, error) {
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("canary: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
