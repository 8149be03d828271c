package moss

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const resultURL = "http://moss.stanford.edu/results/123456789"

// fakeServer speaks just enough of the MOSS protocol to accept one
// batch: it acknowledges the language, records every protocol line and
// file body, and answers the query with a fixed URL.
func fakeServer(t *testing.T, languageOK bool) (addr string, received chan []string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	received = make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)

		var lines []string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				break
			}
			line = strings.TrimRight(line, "\n")
			lines = append(lines, line)

			switch {
			case strings.HasPrefix(line, "language "):
				if languageOK {
					fmt.Fprintf(conn, "yes\n")
				} else {
					fmt.Fprintf(conn, "no\n")
				}
			case strings.HasPrefix(line, "file "):
				size, _ := strconv.Atoi(strings.Fields(line)[3])
				body := make([]byte, size)
				if _, err := io.ReadFull(r, body); err != nil {
					received <- lines
					return
				}
				lines = append(lines, string(body))
			case strings.HasPrefix(line, "query "):
				fmt.Fprintf(conn, "%s\n", resultURL)
			case line == "end":
				received <- lines
				return
			}
		}
		received <- lines
	}()
	return ln.Addr().String(), received
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestClientSend(t *testing.T) {
	addr, received := fakeServer(t, true)

	c := NewClient("12345", "python", zap.NewNop())
	c.Server = addr
	c.AddBaseFile(writeSource(t, "assignment1.py", "# base\n"))
	c.AddFile(writeSource(t, "student.py", "x = 1\n"))

	url, err := c.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resultURL, url)

	lines := <-received
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "moss 12345")
	assert.Contains(t, joined, "directory 0")
	assert.Contains(t, joined, "X 0")
	assert.Contains(t, joined, "maxmatches 3")
	assert.Contains(t, joined, "show 100")
	assert.Contains(t, joined, "language python")
	// Base files are numbered 0, submissions from 1, and bodies are
	// transmitted verbatim.
	assert.Contains(t, joined, "file 0 python 7 ")
	assert.Contains(t, joined, "# base\n")
	assert.Contains(t, joined, "file 1 python 6 ")
	assert.Contains(t, joined, "x = 1\n")
}

func TestClientSend_LanguageRejected(t *testing.T) {
	addr, _ := fakeServer(t, false)

	c := NewClient("12345", "cobol", zap.NewNop())
	c.Server = addr
	c.AddFile(writeSource(t, "student.py", "x = 1\n"))

	_, err := c.Send(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not accepted")
}

func TestClientSend_NoFiles(t *testing.T) {
	c := NewClient("12345", "python", zap.NewNop())
	_, err := c.Send(context.Background())
	assert.Error(t, err)
}

func TestClientSend_SpacesInDisplayName(t *testing.T) {
	addr, received := fakeServer(t, true)

	dir := t.TempDir()
	path := filepath.Join(dir, "Ann Lee.py")
	require.NoError(t, os.WriteFile(path, []byte("y = 2\n"), 0644))

	c := NewClient("12345", "python", zap.NewNop())
	c.Server = addr
	c.AddFile(path)

	_, err := c.Send(context.Background())
	require.NoError(t, err)

	lines := <-received
	for _, line := range lines {
		if strings.HasPrefix(line, "file ") {
			assert.NotContains(t, strings.Fields(line)[4], " ")
			assert.Contains(t, line, "Ann_Lee.py")
		}
	}
}
