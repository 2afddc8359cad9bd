package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzilbb/labbcat-go/internal/config"
	"github.com/nzilbb/labbcat-go/internal/ledger"
	"github.com/nzilbb/labbcat-go/pkg/labbcat"
)

func responseError(status int) error {
	return &labbcat.ResponseError{Response: &labbcat.Response{HTTPStatus: status, Code: 1}}
}

func TestMapErrorToExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitGeneralError},
		{"server not running", labbcat.ErrServerNotRunning, ExitServerNotRunning},
		{"wrapped server not running", fmt.Errorf("get id failed: %w", labbcat.ErrServerNotRunning), ExitServerNotRunning},
		{"not configured", config.ErrNotConfigured, ExitNotConfigured},
		{"not found", responseError(404), ExitNotFound},
		{"ledger not found", fmt.Errorf("task 7: %w", ledger.ErrNotFound), ExitNotFound},
		{"unauthorized", responseError(401), ExitPermissionDenied},
		{"invalid credentials", labbcat.ErrInvalidCredentials, ExitPermissionDenied},
		{"forbidden", responseError(403), ExitPermissionDenied},
		{"prompt cancelled", labbcat.ErrPromptCancelled, ExitPermissionDenied},
		{"conflict", responseError(409), ExitConflict},
		{"version", &labbcat.VersionError{Version: "20200101.0000", Minimum: "20210210.2032"}, ExitConflict},
		{"bad request", responseError(400), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorToExitCode(tt.err))
		})
	}
}

func TestParseLayerCondition(t *testing.T) {
	layerID, regex, err := parseLayerCondition("orthography=kn.*")
	require.NoError(t, err)
	assert.Equal(t, "orthography", layerID)
	assert.Equal(t, "kn.*", regex)

	layerID, regex, err = parseLayerCondition("pos=a=b")
	require.NoError(t, err)
	assert.Equal(t, "pos", layerID)
	assert.Equal(t, "a=b", regex)

	for _, bad := range []string{"orthography", "=knox", "orthography="} {
		_, _, err := parseLayerCondition(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseOffset(t *testing.T) {
	f, err := parseOffset("12.5")
	require.NoError(t, err)
	assert.Equal(t, 12.5, f)

	_, err = parseOffset("-1")
	assert.Error(t, err)
	_, err = parseOffset("soon")
	assert.Error(t, err)
}

func TestPageOf(t *testing.T) {
	assert.Nil(t, pageOf(0, 3))
	assert.Equal(t, &labbcat.Page{Length: 10, Number: 2}, pageOf(10, 2))
}

func TestBuildPattern(t *testing.T) {
	pattern, err := buildPattern([]string{"orthography=the"}, []string{"orthography=knox,pos=N.*"}, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":[
		{"layers":{"orthography":{"pattern":"the"}},"adj":1},
		{"layers":{"orthography":{"pattern":"knox"},"pos":{"pattern":"N.*"}}}
	]}`, pattern.String())

	raw, err := buildPattern(nil, nil, `{"columns":[]}`)
	require.NoError(t, err)
	assert.Equal(t, `{"columns":[]}`, raw.String())

	_, err = buildPattern(nil, nil, "")
	assert.ErrorIs(t, err, labbcat.ErrNoPattern)

	_, err = buildPattern([]string{"orthography=the"}, nil, `{"columns":[]}`)
	assert.Error(t, err)

	_, err = buildPattern([]string{"orthography=the"}, []string{"pos"}, "")
	assert.Error(t, err)
}

func TestFilterExpression(t *testing.T) {
	assert.Equal(t, "", filterExpression("", ""))
	assert.Equal(t, `/^AP\/x/.test(id)`, filterExpression("^AP/x", ""))
	assert.Equal(t, `labels('corpus').includes('QB')`, filterExpression("", "QB"))
	assert.Equal(t, `/^AP/.test(id) && labels('corpus').includes('O\'Brien')`, filterExpression("^AP", "O'Brien"))
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"id=a.eaf", "layerIds=word", "layerIds=pos", "expression=x=y"})
	require.NoError(t, err)
	assert.Equal(t, "a.eaf", params.Get("id"))
	assert.Equal(t, []string{"word", "pos"}, params["layerIds"])
	assert.Equal(t, "x=y", params.Get("expression"))

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
}
