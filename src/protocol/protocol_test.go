package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestTicketExtraction(t *testing.T) {
	assert.Nil(t, Ticket([]byte(`{"event":"cpu.status"}`)))

	tk := Ticket([]byte(`{"event":"cpu.status","ticket":"abc-123"}`))
	require.NotNil(t, tk)
	assert.Equal(t, `"abc-123"`, string(tk))

	// Any JSON value is echoed verbatim, not only strings.
	tk = Ticket([]byte(`{"event":"x","ticket":42}`))
	require.NotNil(t, tk)
	assert.Equal(t, "42", string(tk))
}

func TestStampSetsEnvelopeFields(t *testing.T) {
	out, err := Stamp([]byte(`{"pc":256}`), "cpu.status", []byte(`"t1"`))
	require.NoError(t, err)

	assert.Equal(t, "cpu.status", gjson.GetBytes(out, "event").Str)
	assert.Equal(t, "t1", gjson.GetBytes(out, "ticket").Str)
	assert.Equal(t, int64(256), gjson.GetBytes(out, "pc").Int())
}

func TestStampWithoutTicketOmitsField(t *testing.T) {
	out, err := Stamp([]byte(`{}`), "version", nil)
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(out, "ticket").Exists())
}

func TestEncodeNilPayload(t *testing.T) {
	out, err := Encode("cpu.resume", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "cpu.resume", gjson.GetBytes(out, "event").Str)
	assert.False(t, gjson.GetBytes(out, "ticket").Exists())
}

func TestEncodeRejectsNonObjectPayload(t *testing.T) {
	_, err := Encode("cpu.status", []int{1, 2, 3}, nil)
	require.Error(t, err)
}

func TestEncodeEnvelopeOverridesPayloadEvent(t *testing.T) {
	out, err := Encode("game.status", map[string]any{"event": "spoofed"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "game.status", gjson.GetBytes(out, "event").Str)
}

func TestErrorBytesTicketEcho(t *testing.T) {
	out, err := ErrorBytes(MsgUnknownEvent, LevelError, []byte(`"t-9"`))
	require.NoError(t, err)

	assert.Equal(t, "error", gjson.GetBytes(out, "event").Str)
	assert.Equal(t, MsgUnknownEvent, gjson.GetBytes(out, "message").Str)
	assert.Equal(t, int64(2), gjson.GetBytes(out, "level").Int())
	assert.Equal(t, "t-9", gjson.GetBytes(out, "ticket").Str)

	out, err = ErrorBytes(MsgInvalidJSON, LevelError, nil)
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(out, "ticket").Exists())
}

func TestLevelFromZerolog(t *testing.T) {
	cases := map[string]Level{
		"error": LevelError,
		"fatal": LevelError,
		"warn":  LevelWarn,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"trace": LevelVerbose,
		"":      LevelInfo,
	}
	for name, want := range cases {
		assert.Equal(t, want, LevelFromZerolog(name), "level %q", name)
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "notice", LevelNotice.String())
	assert.Equal(t, "verbose", LevelVerbose.String())
	assert.Equal(t, "level(9)", Level(9).String())
}
