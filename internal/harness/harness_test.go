package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typekey/internal/keyerr"
)

const fixtureConfig = `
config:
  encoding: plain
  types:
    - {module: example.com/app, name: User}
`

func mustParse(t *testing.T, body string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte("name: inline\ndescription: inline scenario\n" + fixtureConfig + body))
	require.NoError(t, err)
	return s
}

func TestRun_Pass(t *testing.T) {
	s := mustParse(t, `
steps:
  - encode: [{type: "User, example.com/app", value: "a+b"}]
    expect: {wire: "User, example.com/app{:}a++b"}
  - decode: "User, example.com/app{:}a++b"
    expect: {display: 'example.com/app.User("a+b")'}
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, "encode", result.Steps[0].Op)
	assert.Equal(t, "decode", result.Steps[1].Op)
	assert.Equal(t, 1, result.Steps[1].Index)
}

func TestRun_WrongWire(t *testing.T) {
	s := mustParse(t, `
steps:
  - encode: [{type: "User, example.com/app", value: "a"}]
    expect: {wire: "User, example.com/app{:}b"}
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)

	var ae *AssertionError
	require.True(t, errors.As(result.Errors[0], &ae))
	assert.Equal(t, 0, ae.Step)
	assert.Equal(t, "wire", ae.Field)
	assert.Contains(t, ae.Error(), "Assertion failed: step 0 wire")
}

func TestRun_UnexpectedFailure(t *testing.T) {
	s := mustParse(t, `
steps:
  - decode: "User, example.com/app{:}a:b"
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, keyerr.MalformedWireFormat, result.Steps[0].Error)

	var ae *AssertionError
	require.True(t, errors.As(result.Errors[0], &ae))
	assert.Equal(t, "success", ae.Expected)
}

func TestRun_WrongErrorKind(t *testing.T) {
	s := mustParse(t, `
steps:
  - decode: "Ghost, example.com/app{:}1"
    expect: {error: UNMAPPED_TYPE}
  - decode: "User, example.com/app{:}1"
    expect: {error: MALFORMED_WIRE_FORMAT}
`)
	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, keyerr.UnresolvedType, result.Steps[0].Error)
	assert.Contains(t, result.Errors[1].Error(), "Actual: success")
}

func TestRun_BadAlias(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: bad_alias
description: alias target does not resolve
config:
  naming: lookup
  aliases: [{alias: g, type: "Ghost, example.com/app"}]
steps:
  - decode: "Zw==:MQ=="
`))
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario bad_alias")
}
