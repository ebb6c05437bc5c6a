package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/book-rental/factory"
)

const validCatalog = `{
  "id": "tiny",
  "name": "Tiny",
  "accounts": [
    {"full_name": "Admin", "email": " Admin@Library.test ", "password": "admin-pass", "role": "Admin"},
    {"full_name": "Reader", "email": "reader@library.test", "password": "reader-pass"}
  ],
  "books": [
    {"title": "Emma", "author": "Jane Austen", "copies": 2},
    {"key": "dune", "title": "Dune", "author": "Frank Herbert", "copies": 1}
  ],
  "activity": [
    {"book": "emma", "user": "READER@library.test", "kind": "approved"},
    {"book": "dune", "user": "reader@library.test", "kind": "pending"}
  ]
}`

func TestParseCatalog_Defaults(t *testing.T) {
	c, err := factory.NewCatalogFactory().ParseCatalog(validCatalog)
	require.NoError(t, err)

	assert.Equal(t, "admin@library.test", c.Accounts[0].Email)
	assert.Equal(t, "User", c.Accounts[1].Role)
	assert.Equal(t, "emma", c.Books[0].Key)
	assert.Equal(t, "reader@library.test", c.Activity[0].User)
	require.Len(t, c.Admins(), 1)
	assert.Equal(t, "Admin", c.Admins()[0].FullName)
}

func TestParseCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"malformed", `{"id": `, "parse catalog"},
		{"no id", `{"accounts": []}`, "id is required"},
		{"no admin", `{"id": "x", "accounts": [{"full_name": "R", "email": "r@x.test", "password": "p"}]}`, "Admin account"},
		{"bad role", `{"id": "x", "accounts": [{"email": "r@x.test", "role": "Owner"}]}`, "unknown role"},
		{"duplicate account", `{"id": "x", "accounts": [{"email": "a@x.test", "role": "Admin"}, {"email": "A@x.test"}]}`, "duplicate account"},
		{"bad book", `{"id": "x", "accounts": [{"email": "a@x.test", "role": "Admin"}], "books": [{"title": "T", "author": "", "copies": 1}]}`, "author"},
		{"unknown book", `{"id": "x", "accounts": [{"email": "a@x.test", "role": "Admin"}], "activity": [{"book": "nope", "user": "a@x.test", "kind": "rented"}]}`, "unknown book"},
		{"unknown kind", `{"id": "x", "accounts": [{"email": "a@x.test", "role": "Admin"}], "books": [{"title": "T", "author": "A", "copies": 1}], "activity": [{"book": "t", "user": "a@x.test", "kind": "lost"}]}`, "unknown kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.NewCatalogFactory().ParseCatalog(tt.json)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
