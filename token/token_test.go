package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kyleconroy/tdlineage/token"
)

func TestLookupRecognizesKeywordsCaseInsensitively(t *testing.T) {
	cases := []struct {
		ident string
		want  token.Token
	}{
		{"SELECT", token.SELECT},
		{"select", token.SELECT},
		{"Select", token.SELECT},
		{"VOLATILE", token.VOLATILE},
		{"With", token.WITH},
		{"merge", token.MERGE},
		{"CALL", token.CALL},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, token.Lookup(c.ident), c.ident)
	}
}

func TestLookupFallsBackToIdent(t *testing.T) {
	assert.Equal(t, token.IDENT, token.Lookup("customer_id"))
	assert.Equal(t, token.IDENT, token.Lookup("orders"))
}

func TestIsKeyword(t *testing.T) {
	assert.True(t, token.SELECT.IsKeyword())
	assert.True(t, token.VOLATILE.IsKeyword())
	assert.False(t, token.IDENT.IsKeyword())
	assert.False(t, token.EOF.IsKeyword())
}

func TestTokenString(t *testing.T) {
	assert.Equal(t, "SELECT", token.SELECT.String())
	assert.NotEmpty(t, token.IDENT.String())
}
