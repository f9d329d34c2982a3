package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc.def.ghi", bearerToken("Bearer abc.def.ghi"))
	assert.Equal(t, "abc.def.ghi", bearerToken("bearer abc.def.ghi"))
	assert.Equal(t, "tok", bearerToken("Bearer  tok"))

	assert.Empty(t, bearerToken(""))
	assert.Empty(t, bearerToken("Bearer "))
	assert.Empty(t, bearerToken("Basic dXNlcjpwYXNz"))
	assert.Empty(t, bearerToken("abc.def.ghi"))
}
