package proto

import (
	"bytes"
	"io"
)

const readChunk = 1024

// LineReader assembles \r\n-terminated commands from a raw byte stream.
// Backspace bytes are consumed as they arrive: the erase sequence " \b"
// is echoed back and the preceding buffered byte is dropped, emulating
// remote line editing for telnet clients.
type LineReader struct {
	rw  io.ReadWriter
	buf []byte
}

// NewLineReader wraps the connection's read side. The write side is only
// used for backspace echo.
func NewLineReader(rw io.ReadWriter) *LineReader {
	return &LineReader{rw: rw}
}

// ReadCommands blocks until at least one complete command is buffered and
// returns every complete command, terminators stripped, in arrival order.
// A single read may carry several queued commands. Returns io.EOF when
// the peer closes the connection.
func (r *LineReader) ReadCommands() ([]string, error) {
	for !bytes.Contains(r.buf, []byte("\r\n")) {
		chunk := make([]byte, readChunk)
		n, err := r.rw.Read(chunk)
		if n > 0 {
			r.buf = append(r.buf, chunk[:n]...)
			r.applyBackspaces()
		}
		if err != nil {
			return nil, err
		}
		if n == 0 && err == nil {
			return nil, io.EOF
		}
	}

	var cmds []string
	for {
		idx := bytes.Index(r.buf, []byte("\r\n"))
		if idx < 0 {
			break
		}
		cmds = append(cmds, string(r.buf[:idx]))
		r.buf = r.buf[idx+2:]
	}
	return cmds, nil
}

// applyBackspaces erases buffered characters for every \b received,
// echoing " \b" so the client's terminal erases the character too.
func (r *LineReader) applyBackspaces() {
	for {
		idx := bytes.IndexByte(r.buf, '\b')
		if idx < 0 {
			return
		}
		r.rw.Write([]byte(" \b"))
		if idx > 0 {
			r.buf = append(r.buf[:idx-1], r.buf[idx+1:]...)
		} else {
			r.buf = r.buf[1:]
		}
	}
}
