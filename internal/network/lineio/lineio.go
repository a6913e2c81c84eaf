// Package lineio 实现服务器与客户端之间的线协议编解码。
//
// 线协议约定：
//   - 一条消息就是一行 UTF-8 文本，以 '\n' 结尾；
//   - 读取侧容忍 "\r\n"，交付给上层前会剥掉行尾的 '\r' 与 '\n'；
//   - 单行字节数受 maxLineBytes 限制，超限的行会以 merr.ErrLineTooLong 拒绝。
package lineio

import (
	"bufio"
	"io"

	"github.com/mingle-chat/mingle-go/pkg/util/merr"
)

// DefaultMaxLineBytes 为单行文本的默认上限。
const DefaultMaxLineBytes = 4096

// Reader 从底层连接按行读取文本。
//
// 非并发安全：每条连接应只由一个读协程持有。
type Reader struct {
	br  *bufio.Reader
	max int
}

// NewReader 创建一个行读取器。
//
// maxLineBytes <= 0 时使用 DefaultMaxLineBytes。
func NewReader(r io.Reader, maxLineBytes int) *Reader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	// bufio 缓冲区比行上限多留一个字节，这样 ErrBufferFull
	// 只会在行长确实超限时出现。
	return &Reader{
		br:  bufio.NewReaderSize(r, maxLineBytes+1),
		max: maxLineBytes,
	}
}

// ReadLine 读取下一行文本，返回值不含行尾的 '\r' 与 '\n'。
//
// 行为：
//   - 对端正常关闭且无残留字节时返回 io.EOF；
//   - 对端关闭前最后一行未以 '\n' 结尾时，先交付该行，下次调用返回 io.EOF；
//   - 行长超过 maxLineBytes 时返回 merr.ErrLineTooLong，
//     并丢弃该行剩余字节，调用方可据此决定断开连接。
func (r *Reader) ReadLine() (string, error) {
	data, err := r.br.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		if derr := r.discardLine(); derr != nil {
			return "", derr
		}
		return "", merr.WrapErrLineTooLong(r.max)
	}
	if err != nil {
		if err == io.EOF && len(data) > 0 {
			return trimEOL(data), nil
		}
		return "", err
	}
	return trimEOL(data), nil
}

// discardLine 丢弃当前行剩余的字节，直到下一个 '\n' 或流结束。
func (r *Reader) discardLine() error {
	for {
		_, err := r.br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			return nil
		}
		return err
	}
}

func trimEOL(data []byte) string {
	n := len(data)
	if n > 0 && data[n-1] == '\n' {
		n--
	}
	if n > 0 && data[n-1] == '\r' {
		n--
	}
	return string(data[:n])
}

// Writer 向底层连接按行写出文本。
//
// 非并发安全：调用方（会话的发送协程）需保证串行写出。
type Writer struct {
	w io.Writer
}

// NewWriter 创建一个行写出器。
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteLine 写出一行文本并补上行尾的 '\n'。
func (w *Writer) WriteLine(line string) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	_, err := w.w.Write(buf)
	return err
}
