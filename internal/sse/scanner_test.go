package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, r io.Reader) []string {
	t.Helper()
	s := NewScanner(r)
	var out []string
	for s.Scan() {
		out = append(out, string(s.Data()))
	}
	require.NoError(t, s.Err())
	return out
}

func TestScanner_DataLines(t *testing.T) {
	body := "data: {\"type\":\"chunk\",\"content\":\"Great\"}\n\n" +
		"data: {\"type\":\"complete\",\"fullResponse\":\"Great.\",\"confidence\":0.9}\n\n"

	got := collect(t, strings.NewReader(body))

	assert.Equal(t, []string{
		`{"type":"chunk","content":"Great"}`,
		`{"type":"complete","fullResponse":"Great.","confidence":0.9}`,
	}, got)
}

func TestScanner_SplitFramesAcrossReads(t *testing.T) {
	body := "data: {\"type\":\"chunk\",\"content\":\", tell me\"}\n" +
		"data: {\"type\":\"chunk\",\"content\":\" about a project\"}\n"

	got := collect(t, iotest.OneByteReader(strings.NewReader(body)))

	assert.Equal(t, []string{
		`{"type":"chunk","content":", tell me"}`,
		`{"type":"chunk","content":" about a project"}`,
	}, got)
}

func TestScanner_IgnoresNonDataLines(t *testing.T) {
	body := ": keep-alive\n" +
		"event: message\n" +
		"id: 7\n" +
		"\n" +
		"data:\n" +
		"garbage line\n" +
		"data:{\"type\":\"chunk\"}\r\n"

	got := collect(t, strings.NewReader(body))

	assert.Equal(t, []string{`{"type":"chunk"}`}, got)
}

func TestScanner_TrailingLineWithoutNewline(t *testing.T) {
	s := NewScanner(strings.NewReader("data: {\"type\":\"error\"}"))

	require.True(t, s.Scan())
	assert.Equal(t, `{"type":"error"}`, string(s.Data()))
	assert.False(t, s.Scan())
	assert.NoError(t, s.Err())
	assert.Equal(t, 1, s.Lines())
}

func TestScanner_EmptyStream(t *testing.T) {
	s := NewScanner(strings.NewReader(""))

	assert.False(t, s.Scan())
	assert.NoError(t, s.Err())
	assert.Zero(t, s.Lines())
}

func TestScanner_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("data: {\"a\":1}\n"), iotest.ErrReader(boom))
	s := NewScanner(r)

	require.True(t, s.Scan())
	assert.False(t, s.Scan())
	assert.ErrorIs(t, s.Err(), boom)
}
