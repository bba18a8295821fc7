// Package apperror defines the error taxonomy shared by every service in the
// API. A taxonomy error carries an HTTP-compatible status code, a short
// message safe to show end users and an optional list of diagnostic details.
// Anything that is not a taxonomy error is treated as a defect by the
// response boundary.
package apperror

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Kind discriminates the taxonomy variants.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindNotAuthorized
	KindConflict
	KindServer
)

// Detail is a single diagnostic record. Details are meant for logs and are
// only surfaced to clients on validation failures.
type Detail struct {
	Message string `json:"message"`
}

// Error is the one error shape the whole API speaks.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Details    []Detail
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
	}
	msgs := make([]string, len(e.Details))
	for i, d := range e.Details {
		msgs[i] = d.Message
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Message, strings.Join(msgs, "; "))
}

// Validation builds a 400 error from field-level details, in the order the
// shape declares them.
func Validation(details ...Detail) *Error {
	return &Error{
		Kind:       KindValidation,
		StatusCode: 400,
		Message:    "Invalid request data.",
		Details:    details,
	}
}

// ValidationMsg is a convenience for a single-detail validation failure.
func ValidationMsg(detail string) *Error {
	return Validation(Detail{Message: detail})
}

// NotFound builds a 404 error. The detail, if any, stays in the logs.
func NotFound(detail string) *Error {
	e := &Error{
		Kind:       KindNotFound,
		StatusCode: 404,
		Message:    "Not found",
	}
	if detail != "" {
		e.Details = []Detail{{Message: detail}}
	}
	return e
}

// NotAuthorized builds a 401 error. The detail, if any, stays in the logs.
func NotAuthorized(detail string) *Error {
	e := &Error{
		Kind:       KindNotAuthorized,
		StatusCode: 401,
		Message:    "Not authorized",
	}
	if detail != "" {
		e.Details = []Detail{{Message: detail}}
	}
	return e
}

// NotAuthorizedDetails builds a 401 error carrying a prepared detail list,
// e.g. the structural violations of a malformed bearer token.
func NotAuthorizedDetails(details []Detail) *Error {
	return &Error{
		Kind:       KindNotAuthorized,
		StatusCode: 401,
		Message:    "Not authorized",
		Details:    details,
	}
}

// LoginFailed is the 401 used for every credential failure, so callers
// cannot tell a wrong email from a wrong password. The detail stays in the
// logs.
func LoginFailed(detail string) *Error {
	e := &Error{
		Kind:       KindNotAuthorized,
		StatusCode: 401,
		Message:    "Email or password is wrong",
	}
	if detail != "" {
		e.Details = []Detail{{Message: detail}}
	}
	return e
}

// EmailNotVerified is the 401 returned for login attempts before the email
// has been verified.
func EmailNotVerified() *Error {
	return &Error{
		Kind:       KindNotAuthorized,
		StatusCode: 401,
		Message:    "Email is not verified",
	}
}

// Conflict builds a 409 error naming the colliding fields.
func Conflict(fields ...string) *Error {
	return &Error{
		Kind:       KindConflict,
		StatusCode: 409,
		Message:    fmt.Sprintf("This %s is in use", strings.Join(fields, ", ")),
	}
}

// Server builds a 500 error. The detail never reaches the client.
func Server(detail string) *Error {
	e := &Error{
		Kind:       KindServer,
		StatusCode: 500,
		Message:    "Internal server error",
	}
	if detail != "" {
		e.Details = []Detail{{Message: detail}}
	}
	return e
}

// As unwraps err into a taxonomy error if it is one.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// MapDBErr translates a persistence error into the nearest taxonomy kind:
// missing rows become not-found with the given detail, unique violations
// become conflicts naming the colliding column, everything else a generic
// server failure. A nil err maps to nil.
func MapDBErr(err error, notFoundDetail string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound(notFoundDetail)
	}
	if col, ok := UniqueViolation(err); ok {
		return Conflict(col)
	}
	return Server(err.Error())
}

// UniqueViolation reports whether err is a Postgres unique-constraint
// violation and names the colliding column, derived from the conventional
// "<table>_<column>_key" constraint name.
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return "", false
	}
	name := strings.TrimSuffix(pqErr.Constraint, "_key")
	if i := strings.Index(name, "_"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		name = "value"
	}
	return name, true
}
