package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	out, err := Parse([]string{"accept-language: en-GB,en;q=0.9", "", "X-Forwarded-For:  10.0.0.1 "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Accept-Language": "en-GB,en;q=0.9",
		"X-Forwarded-For": "10.0.0.1",
	}, out)

	out, err = Parse(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestParseRejects(t *testing.T) {
	for _, line := range []string{"BadHeader", ": value", "Bad Key: v", "host: example.com"} {
		_, err := Parse([]string{line})
		assert.Error(t, err, line)
	}
}
