package contract

import (
	"context"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/t81dev/t81-lang/failure"
	"github.com/t81dev/t81-lang/tisc"
)

// RevisionSource reports the VM repository's current revision.
type RevisionSource interface {
	Revision(ctx context.Context) (string, error)
}

// RevisionFunc adapts a function to RevisionSource.
type RevisionFunc func(ctx context.Context) (string, error)

func (f RevisionFunc) Revision(ctx context.Context) (string, error) {
	return f(ctx)
}

// Validator checks a local/external contract pair.
type Validator struct {
	lane      Lane
	revisions RevisionSource
}

// NewValidator creates a validator for the given lane. revisions is only
// consulted in the pinned lane and may be nil otherwise.
func NewValidator(lane Lane, revisions RevisionSource) *Validator {
	return &Validator{lane: lane, revisions: revisions}
}

// Validate runs the version, pinned-revision, opcode and format checks in
// that order and returns the first failure.
func (v *Validator) Validate(ctx context.Context, local *Local, ext *External) error {
	if err := CheckVersion(local, ext); err != nil {
		return err
	}
	if v.lane == LanePinned {
		if err := v.checkPin(ctx, local); err != nil {
			return err
		}
	}
	if err := CheckOpcodes(ext); err != nil {
		return err
	}
	if err := CheckFormats(ext); err != nil {
		return err
	}
	log.Infof("contract %s ok (lane %s)", ext.ContractVersion.Trimmed(), v.lane)
	return nil
}

// CheckVersion requires the trimmed contract versions to be identical.
func CheckVersion(local *Local, ext *External) error {
	vmVersion := ext.ContractVersion.Trimmed()
	localVersion := local.ContractVersion.Trimmed()
	if vmVersion == localVersion {
		return nil
	}
	return failure.Newf(failure.ContractVersionMismatch,
		"VM contract version mismatch: vm=%q local=%q%s", vmVersion, localVersion, versionHint(vmVersion, localVersion))
}

// versionHint describes how two differing versions relate when both are
// semantic versions. It never changes the outcome of CheckVersion.
func versionHint(vmVersion, localVersion string) string {
	vmV, err := semver.NewVersion(vmVersion)
	if err != nil {
		return ""
	}
	localV, err := semver.NewVersion(localVersion)
	if err != nil {
		return ""
	}
	switch vmV.Compare(localV) {
	case 1:
		return " (vm is newer)"
	case -1:
		return " (vm is older)"
	default:
		return " (equal as semver, exact match required)"
	}
}

func (v *Validator) checkPin(ctx context.Context, local *Local) error {
	pin := strings.TrimSpace(local.VMMainPin)
	if pin == "" {
		return failure.Newf(failure.ConfigurationError,
			"Pinned lane requires vm_main_pin in %s", LocalPath)
	}
	if v.revisions == nil {
		return failure.Newf(failure.ConfigurationError, "pinned lane has no revision source")
	}

	head, err := v.revisions.Revision(ctx)
	if err != nil {
		if failure.KindOf(err) != failure.Unknown {
			return err
		}
		return failure.Wrapf(failure.EnvironmentError, err, "cannot determine VM revision")
	}
	head = strings.TrimSpace(head)
	if head != pin {
		return failure.Newf(failure.PinnedRevisionMismatch,
			"Pinned lane VM commit mismatch: vm=%s expected=%s", head, pin)
	}
	log.Infof("VM pinned at %s", head)
	return nil
}

// CheckOpcodes requires every opcode of the compatibility floor.
func CheckOpcodes(ext *External) error {
	missing := tisc.MissingOpcodes(ext.SupportedOpcodes)
	if len(missing) > 0 {
		return failure.Newf(failure.MissingOpcodes,
			"VM contract missing required opcodes: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CheckFormats requires every program format of the compatibility floor.
// All missing formats are reported together.
func CheckFormats(ext *External) error {
	missing := tisc.MissingFormats(ext.FormatNames())
	switch len(missing) {
	case 0:
		return nil
	case 1:
		return failure.Newf(failure.MissingFormat, "VM contract missing accepted format: %s", missing[0])
	default:
		return failure.Newf(failure.MissingFormat, "VM contract missing accepted formats: %s", strings.Join(missing, ", "))
	}
}
