package lineio

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mingle-chat/mingle-go/pkg/util/merr"
)

func TestReadLine(t *testing.T) {
	r := NewReader(strings.NewReader("hello\nworld\r\n\n"), 0)

	line, err := r.ReadLine()
	assert.NoError(t, err)
	assert.Equal(t, "hello", line)

	line, err = r.ReadLine()
	assert.NoError(t, err)
	assert.Equal(t, "world", line)

	line, err = r.ReadLine()
	assert.NoError(t, err)
	assert.Equal(t, "", line)

	_, err = r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLineWithoutTrailingNewline(t *testing.T) {
	r := NewReader(strings.NewReader("partial"), 0)

	line, err := r.ReadLine()
	assert.NoError(t, err)
	assert.Equal(t, "partial", line)

	_, err = r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLineTooLong(t *testing.T) {
	long := strings.Repeat("x", 64)
	r := NewReader(strings.NewReader(long+"\nnext\n"), 16)

	_, err := r.ReadLine()
	assert.Error(t, err)
	assert.ErrorIs(t, err, merr.ErrLineTooLong)

	// 超限行被整体丢弃，不影响后续行。
	line, err := r.ReadLine()
	assert.NoError(t, err)
	assert.Equal(t, "next", line)
}

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	assert.NoError(t, w.WriteLine("hello"))
	assert.NoError(t, w.WriteLine(""))
	assert.Equal(t, "hello\n\n", buf.String())
}
