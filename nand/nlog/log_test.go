package nlog

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestStreamWritesHeaderOnceThenRows(t *testing.T) {
	var buf bytes.Buffer
	s := NewStream(&buf, "a,b,c")
	s.Row(1, 2, 3)
	s.Row(4, 5, 6)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"a,b,c", "1,2,3", "4,5,6"}, lines)
}

func TestStreamRowIsNoopWhenNil(t *testing.T) {
	var s *Stream
	assert.NotPanics(t, func() { s.Row(1, 2) })
}

func TestNewStreamsDisablesMissingWriters(t *testing.T) {
	var buf bytes.Buffer
	streams := NewStreams(map[string]io.Writer{
		"plane_read": &buf,
	})
	assert.NotNil(t, streams.PlaneRead)
	assert.Nil(t, streams.PlaneWrite)
}

func TestNewBuildsLeveledLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.WarnLevel)
	logger.Info().Msg("should not appear")
	logger.Warn().Msg("should appear")
	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}
