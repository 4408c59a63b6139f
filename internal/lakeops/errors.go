package lakeops

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adlsctl/adlsctl/internal/rest"
)

// Sentinel errors for the operation-level taxonomy.
// Use errors.Is(err, lakeops.ErrNotFound) to check.
var (
	ErrNotFound         = errors.New("lakeops: not found")
	ErrAlreadyExists    = errors.New("lakeops: already exists")
	ErrIdentityNotFound = errors.New("lakeops: identity not found in directory")
	ErrAuthRequired     = errors.New("lakeops: authentication required")
	ErrResourceLocked   = errors.New("lakeops: resource locked")
	ErrAuthorization    = errors.New("lakeops: authorization denied")
	ErrPartialFailure   = errors.New("lakeops: some entries failed")
)

// OpError enriches a failure with the operation context before it
// reaches the caller: which operation, against which account,
// container, and path, and for which identity (when one is involved).
type OpError struct {
	Op        string
	Account   string
	Container string
	Path      string
	Identity  string
	Err       error
}

func (e *OpError) Error() string {
	var b strings.Builder

	b.WriteString("lakeops: ")
	b.WriteString(e.Op)
	b.WriteString(" ")
	b.WriteString(e.Account)
	b.WriteString("/")
	b.WriteString(e.Container)

	if e.Path != "" {
		b.WriteString("/")
		b.WriteString(e.Path)
	}

	if e.Identity != "" {
		b.WriteString(" (identity ")
		b.WriteString(e.Identity)
		b.WriteString(")")
	}

	b.WriteString(": ")
	b.WriteString(e.Err.Error())

	return b.String()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Classifier maps a provider error onto the taxonomy sentinels. It
// returns the error to surface: either the input wrapped with a
// sentinel, or the input unchanged when no rule matches (the generic
// provider error case). Pluggable so the rule table can be swapped
// without touching call sites.
type Classifier func(err error) error

// classifierRule matches structured provider error codes first and
// falls back to message substrings. Provider message text changes;
// codes are contractual, so they are preferred when present.
type classifierRule struct {
	sentinel   error
	codes      []string
	substrings []string
}

// defaultRules is ordered: the first matching rule wins. Lock
// detection precedes authorization because locked-scope failures often
// arrive as 403s with lock wording.
var defaultRules = []classifierRule{
	{
		sentinel:   ErrResourceLocked,
		codes:      []string{"ScopeLocked", "ResourceGroupLocked", "ReadOnlyDisabledSubscription"},
		substrings: []string{"ScopeLocked", "is locked", "ReadOnlyLock", "CannotDeleteLock"},
	},
	{
		sentinel: ErrAuthorization,
		codes: []string{
			"AuthorizationFailure",
			"AuthorizationFailed",
			"AuthorizationPermissionMismatch",
			"Authorization_RequestDenied",
			"InsufficientAccountPermissions",
		},
		substrings: []string{"Forbidden", "403"},
	},
	{
		sentinel:   ErrAuthRequired,
		codes:      []string{"InvalidAuthenticationToken", "ExpiredAuthenticationToken", "NoAuthenticationInformation"},
		substrings: []string{"authentication required", "not logged in"},
	},
}

// DefaultClassifier applies the built-in rule table. Structured
// sentinels from the transport short-circuit the table: a 401 is
// always an authentication failure and a 403 an authorization failure
// regardless of message text.
func DefaultClassifier(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, rest.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", ErrAuthRequired, err)
	}

	var apiErr *rest.Error

	code := ""
	if errors.As(err, &apiErr) {
		code = apiErr.Code
	}

	msg := err.Error()

	for _, rule := range defaultRules {
		if rule.matches(code, msg) {
			return fmt.Errorf("%w: %w", rule.sentinel, err)
		}
	}

	if errors.Is(err, rest.ErrForbidden) {
		return fmt.Errorf("%w: %w", ErrAuthorization, err)
	}

	return err
}

func (r classifierRule) matches(code, msg string) bool {
	for _, c := range r.codes {
		if code != "" && strings.EqualFold(code, c) {
			return true
		}
	}

	for _, s := range r.substrings {
		if strings.Contains(msg, s) {
			return true
		}
	}

	return false
}
