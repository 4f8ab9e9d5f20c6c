package tisc

import "slices"

// Format names a program serialization scheme a VM may accept.
type Format string

const (
	FormatTextV1     Format = "TextV1"     // line-oriented assembly text
	FormatTiscJSONV1 Format = "TiscJsonV1" // structured JSON, see SpecVersionJSONV1
)

// SpecVersionJSONV1 is the spec_version tag carried by TiscJsonV1 documents.
const SpecVersionJSONV1 = "tisc-json-v1"

// requiredFormats is ordered; reports list missing formats in this order.
var requiredFormats = []Format{
	FormatTextV1,
	FormatTiscJSONV1,
}

func (f Format) String() string {
	return string(f)
}

// RequiredFormats returns a fresh copy of the program-format floor.
func RequiredFormats() []Format {
	return slices.Clone(requiredFormats)
}

// MissingFormats returns the required formats absent from accepted, in
// RequiredFormats order.
func MissingFormats(accepted []string) []string {
	var missing []string
	for _, f := range requiredFormats {
		if !slices.Contains(accepted, string(f)) {
			missing = append(missing, string(f))
		}
	}
	return missing
}
