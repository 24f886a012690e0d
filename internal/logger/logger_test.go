package logger

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	l := New()
	require.NotNil(t, l)
	assert.NotNil(t, l.writer)
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)
	require.NotNil(t, l)
	l.Info("hello")
	assert.Contains(t, buf.String(), "LEVEL=INFO")
	assert.Contains(t, buf.String(), "MESSAGE=hello")
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name  string
		logFn func(l *Logger)
		level string
	}{
		{"info", func(l *Logger) { l.Info("m") }, "LEVEL=INFO"},
		{"error", func(l *Logger) { l.Error("m") }, "LEVEL=ERROR"},
		{"warn", func(l *Logger) { l.Warn("m") }, "LEVEL=WARNING"},
		{"debug", func(l *Logger) { l.Debug("m") }, "LEVEL=DEBUG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFn(NewWithWriter(&buf))
			assert.Contains(t, buf.String(), tt.level)
		})
	}
}

func TestLogMultipleFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)
	l.Info("reservation created", Reservation(12), Room(5), Window(9, 11))
	output := buf.String()
	assert.Contains(t, output, "RESERVATION=12")
	assert.Contains(t, output, "ROOM=5")
	assert.Contains(t, output, "WINDOW=[9,11)")
}

func TestFieldConstructors(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		key   string
	}{
		{"Action", Action("approve"), "ACTION"},
		{"Status", Status("ok"), "STATUS"},
		{"User", User(3), "USER"},
		{"Username", Username("alice"), "USERNAME"},
		{"Role", Role("admin"), "ROLE"},
		{"Room", Room(5), "ROOM"},
		{"Reservation", Reservation(9), "RESERVATION"},
		{"Date", Date("2025-06-01"), "DATE"},
		{"Count", Count(5), "COUNT"},
		{"Code", Code(409), "CODE"},
		{"Error", Error(errors.New("oops")), "ERROR"},
		{"Reason", Reason("because"), "REASON"},
		{"RequestID", RequestID("abc"), "REQUEST_ID"},
		{"Command", Command("CreateReservation"), "COMMAND"},
		{"Password", Password("secret"), "PASSWORD"},
		{"Path", Path("/api"), "PATH"},
		{"LatencyMS", LatencyMS(4), "LATENCY_MS"},
		{"Driver", Driver("sqlite"), "DRIVER"},
		{"Queue", Queue("q"), "QUEUE"},
		{"Correlation", Correlation("c1"), "CORRELATION_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.field.Key)
			assert.NotNil(t, tt.field.Value)
		})
	}
}

func TestLogNoFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)
	l.Info("no fields")
	assert.Equal(t, "LEVEL=INFO MESSAGE=no fields\n", buf.String())
}

func TestConcurrentLinesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Info("tick", Count(i))
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 50)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "LEVEL=INFO MESSAGE=tick COUNT="), line)
	}
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("dropped") })
}
