package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	"gopkg.in/yaml.v3"

	"github.com/t81dev/t81-lang/failure"
)

var log = commonlog.GetLogger("t81compat.contract")

// LoadLocal reads and validates the front-end contract at path.
func LoadLocal(path string) (*Local, error) {
	data, err := readDocument(path, "Missing local runtime contract marker")
	if err != nil {
		return nil, err
	}
	if err := validateDocument(localSchema, path, data); err != nil {
		return nil, err
	}

	var c Local
	if err := decodeDocument(path, data, &c); err != nil {
		return nil, err
	}
	c.Path = path
	log.Debugf("loaded local contract %s (version %q)", path, c.ContractVersion.Trimmed())
	return &c, nil
}

// LoadExternal reads and validates the VM contract at path.
func LoadExternal(path string) (*External, error) {
	data, err := readDocument(path, "Missing VM contract file")
	if err != nil {
		return nil, err
	}
	if err := validateDocument(externalSchema, path, data); err != nil {
		return nil, err
	}

	var c External
	if err := decodeDocument(path, data, &c); err != nil {
		return nil, err
	}
	c.Path = path
	log.Debugf("loaded VM contract %s (version %q, %d opcodes, %d formats)",
		path, c.ContractVersion.Trimmed(), len(c.SupportedOpcodes), len(c.AcceptedProgramFormats))
	return &c, nil
}

// readDocument returns the document at path as JSON bytes. YAML documents
// (.yaml, .yml) are converted so the rest of the pipeline sees one format.
func readDocument(path, missingMsg string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, failure.Newf(failure.MissingArtifact, "%s: %s", missingMsg, path)
		}
		return nil, failure.Wrapf(failure.EnvironmentError, err, "cannot read %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var root yaml.Node
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, failure.Wrapf(failure.MalformedArtifact, err, "parse error in %s", path)
		}
		doc, err := yamlValue(&root)
		if err == nil {
			data, err = json.Marshal(doc)
		}
		if err != nil {
			return nil, failure.Wrapf(failure.MalformedArtifact, err, "cannot convert %s to JSON", path)
		}
	}
	return data, nil
}

// yamlValue converts a YAML node tree to JSON-ready values. Numbers keep
// their written text so 1.10 stays 1.10.
func yamlValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlValue(n.Content[0])
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			v, err := yamlValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[k.Value] = v
		}
		return out, nil
	}

	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!int", "!!float":
		num := json.Number(n.Value)
		if _, err := num.Float64(); err != nil {
			return nil, fmt.Errorf("line %d: number %q has no JSON form", n.Line, n.Value)
		}
		return num, nil
	case "!!bool", "!!timestamp":
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return n.Value, nil
	}
}

func decodeDocument(path string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return failure.Wrapf(failure.MalformedArtifact, err, "parse error in %s", path)
	}
	return nil
}

// decodeGeneric decodes data for schema validation, keeping numbers exact.
func decodeGeneric(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after top-level value")
	}
	return v, nil
}
