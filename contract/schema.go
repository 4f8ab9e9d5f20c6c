package contract

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/t81dev/t81-lang/failure"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://t81.dev/schemas/"

// schemaRef names an embedded schema; it is compiled on first use.
type schemaRef struct {
	file     string
	compiled func() (*jsonschema.Schema, error)
}

func newSchemaRef(file string) *schemaRef {
	ref := &schemaRef{file: file}
	ref.compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
		data, err := schemaFS.ReadFile(path.Join("schemas", file))
		if err != nil {
			return nil, err
		}
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := schemaBaseURL + file
		if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("schema %s load failed: %w", file, err)
		}
		return c.Compile(url)
	})
	return ref
}

var (
	localSchema    = newSchemaRef("runtime-contract.schema.json")
	externalSchema = newSchemaRef("vm-compatibility.schema.json")
)

// validateDocument checks the shape of a contract document. Semantic
// checks (versions, opcode and format floors) are left to Validator.
func validateDocument(ref *schemaRef, docPath string, data []byte) error {
	schema, err := ref.compiled()
	if err != nil {
		return fmt.Errorf("contract: %w", err)
	}

	doc, err := decodeGeneric(data)
	if err != nil {
		return failure.Wrapf(failure.MalformedArtifact, err, "parse error in %s", docPath)
	}
	if err := schema.Validate(doc); err != nil {
		return failure.Wrapf(failure.MalformedArtifact, err, "%s does not match %s", docPath, ref.file)
	}
	return nil
}
