package core

import "errors"

var (
	// ErrUnsupportedProvider is returned for provider tags the registry does
	// not know.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrConfig marks missing or invalid configuration (client id, client
	// secret, signing secret). Fatal to the attempt, not to the process,
	// except the signing-secret strength check which fails service
	// construction.
	ErrConfig = errors.New("missing or invalid configuration")

	// ErrNetwork marks a transport failure talking to a provider. Retryable
	// by the caller, not by this subsystem.
	ErrNetwork = errors.New("provider request failed")

	// ErrProviderConflict is returned when an identity's email matches a user
	// already linked to a different provider. Wrapped messages name the
	// linked provider, since that is the actionable part.
	ErrProviderConflict = errors.New("account already linked to another provider")

	// ErrNoAccount means no user matched the identity; the caller decides
	// whether to provision one.
	ErrNoAccount = errors.New("no account for identity")

	// ErrInvalidCreationCode means the signup gate rejected the submitted
	// account-creation code.
	ErrInvalidCreationCode = errors.New("invalid account creation code")

	// ErrValidation marks a user-creation constraint violation, e.g.
	// exhausted username retries.
	ErrValidation = errors.New("validation failed")
)
