package deployer

import (
	"errors"
	"fmt"

	"uxy/services/appconfig"
	"uxy/services/blueprint"
	"uxy/services/environment"
)

// Kind classifies why a deployment was cancelled.
type Kind string

const (
	KindConfigInvalid     Kind = "config_invalid"
	KindMissingFile       Kind = "missing_file"
	KindCredentialInvalid Kind = "credential_invalid"
	KindEnvironmentLoad   Kind = "environment_load"
	KindNotProvisioned    Kind = "not_provisioned"
	// KindRemote covers every other I/O or remote failure.
	KindRemote Kind = "remote"
)

// Failure is the single error a deployment returns when it is cancelled.
type Failure struct {
	State State
	Kind  Kind
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.State, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func newFailure(state State, err error) *Failure {
	var existing *Failure
	if errors.As(err, &existing) {
		return existing
	}
	return &Failure{State: state, Kind: classify(err), Err: err}
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, appconfig.ErrInvalid):
		return KindConfigInvalid
	case errors.Is(err, appconfig.ErrMissingFile):
		return KindMissingFile
	case errors.Is(err, environment.ErrCredentialInvalid):
		return KindCredentialInvalid
	case errors.Is(err, environment.ErrLoad):
		return KindEnvironmentLoad
	case errors.Is(err, blueprint.ErrNotFound):
		return KindNotProvisioned
	default:
		return KindRemote
	}
}
