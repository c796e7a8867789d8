package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad config")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "mutation failed", errors.New("boom"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain error")))

	wrapped := fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "inner"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}

func TestExitError_Message(t *testing.T) {
	err := WrapExitError(ExitFailure, "mutation failed", errors.New("boom"))
	assert.Equal(t, "mutation failed: boom", err.Error())
	assert.Equal(t, "boom", errors.Unwrap(err).Error())

	bare := NewExitError(ExitCommandError, "bad config")
	assert.Equal(t, "bad config", bare.Error())
}

func TestOutputFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, f.Success(map[string]int{"count": 3}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	buf.Reset()
	require.NoError(t, f.Error("NETWORK", "remote call failed", nil))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "NETWORK", resp.Error.Code)
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut, Verbose: true}
	f.VerboseLog("loaded %d items", 3)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "loaded 3 items")
}

func TestPriceFormatter(t *testing.T) {
	p, err := newPriceFormatter("PHP")
	require.NoError(t, err)
	got := p.Format(899)
	assert.Contains(t, got, "899.00")

	_, err = newPriceFormatter("notacurrency")
	require.Error(t, err)
}
