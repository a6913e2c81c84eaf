package history

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	r, err := NewFileRecorder(path)
	require.NoError(t, err)

	r.Record(Event{Kind: EventPairStarted, Pair: 1})
	r.Record(Event{Kind: EventMessage, Pair: 1, From: 42, Line: "hello"})
	r.Record(Event{Kind: EventPairEnded, Pair: 1, From: 42, Reason: "exit"})
	require.NoError(t, r.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, sonic.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, events, 3)

	assert.Equal(t, EventPairStarted, events[0].Kind)
	assert.Equal(t, uint64(1), events[0].Pair)
	assert.False(t, events[0].Time.IsZero())

	assert.Equal(t, EventMessage, events[1].Kind)
	assert.Equal(t, uint64(42), events[1].From)
	assert.Equal(t, "hello", events[1].Line)

	assert.Equal(t, EventPairEnded, events[2].Kind)
	assert.Equal(t, "exit", events[2].Reason)
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	r.Record(Event{Kind: EventMessage})
	assert.NoError(t, r.Close())
}
