package validator

import (
	"errors"
	"testing"

	"github.com/htol/techlib/book"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestStructBookInput(t *testing.T) {
	v := New()

	ok := book.BookInput{Title: "Go", Author: "Pike", Year: intPtr(2020), PDFURL: "https://example.com/go.pdf"}
	require.NoError(t, v.Struct(ok))

	bad := book.BookInput{Year: intPtr(1800), Pages: intPtr(-1), PDFURL: "not a url"}
	err := v.Struct(bad)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "is required", verr.Fields["title"])
	assert.Equal(t, "is required", verr.Fields["author"])
	assert.Equal(t, "must be greater than or equal to 1900", verr.Fields["year"])
	assert.Equal(t, "must be greater than or equal to 0", verr.Fields["pages"])
	assert.Equal(t, "must be a valid URL", verr.Fields["pdf_url"])
}

func TestStructProfileUsername(t *testing.T) {
	v := New()

	require.NoError(t, v.Struct(book.ProfileInput{Username: "gopher_42"}))
	require.NoError(t, v.Struct(book.ProfileInput{}))

	err := v.Struct(book.ProfileInput{Username: "no spaces!"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields["username"], "letters, digits")
}

func TestVar(t *testing.T) {
	v := New()
	assert.NoError(t, v.Var("email", "a@b.io", "required,email"))

	err := v.Var("email", "nope", "required,email")
	assert.EqualError(t, err, "validation failed: email must be a valid email address")
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("book-abc", "book"))
	assert.ErrorIs(t, ValidateID("123", "book"), ErrInvalidID)
}

func TestValidateNonEmpty(t *testing.T) {
	assert.ErrorIs(t, ValidateNonEmpty("  "), ErrEmptyString)
	assert.NoError(t, ValidateNonEmpty("x"))
}

func TestIsHTTPURL(t *testing.T) {
	assert.True(t, IsHTTPURL("https://example.com/a.pdf"))
	assert.False(t, IsHTTPURL("ftp://example.com/a.pdf"))
	assert.False(t, IsHTTPURL("/relative.pdf"))
}
