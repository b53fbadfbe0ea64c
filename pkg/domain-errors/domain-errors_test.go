package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// These primitives sit at every trust boundary; the invariants "wrapped domain
// errors preserve the original code" and "errors.Is matches by code" must hold.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeNotFound, Message: "invite not found"}
		s.Equal("invite not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeExhausted}
		s.Equal("invite_exhausted", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	s.Run("returns wrapped error", func() {
		inner := errors.New("redis connection refused")
		err := &Error{Code: CodeInternal, Message: "store error", Err: inner}
		s.Equal(inner, err.Unwrap())
	})

	s.Run("returns nil when no wrapped error", func() {
		err := &Error{Code: CodeNotFound, Message: "not found"}
		s.Nil(err.Unwrap())
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeForbidden, Message: "reserved name"}
		err2 := &Error{Code: CodeForbidden, Message: "hidden account"}
		s.True(err1.Is(err2))
	})

	s.Run("does not match different codes", func() {
		err1 := &Error{Code: CodeForbidden}
		err2 := &Error{Code: CodeValidation}
		s.False(err1.Is(err2))
	})

	s.Run("works with errors.Is through chain", func() {
		inner := &Error{Code: CodeScopeMismatch, Message: "no matching scope"}
		wrapped := &Error{Code: CodeInternal, Message: "wrapped", Err: inner}
		target := &Error{Code: CodeScopeMismatch}
		s.True(errors.Is(wrapped, target))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("preserves original domain code when wrapping domain error", func() {
		original := New(CodeForbidden, "protected account")
		wrapped := Wrap(original, CodeInternal, "guard check failed")

		var domainErr *Error
		s.Require().True(errors.As(wrapped, &domainErr))
		s.Equal(CodeForbidden, domainErr.Code)
		s.Equal("guard check failed", domainErr.Message)
	})

	s.Run("uses provided code when wrapping non-domain error", func() {
		original := errors.New("dial tcp: connection refused")
		wrapped := Wrap(original, CodeExternal, "directory unavailable")

		var domainErr *Error
		s.Require().True(errors.As(wrapped, &domainErr))
		s.Equal(CodeExternal, domainErr.Code)
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.True(HasCode(New(CodePartialSuccess, "license assignment failed"), CodePartialSuccess))
	s.False(HasCode(New(CodeValidation, "bad password"), CodePartialSuccess))
	s.False(HasCode(errors.New("plain"), CodeValidation))
}
