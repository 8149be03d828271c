// Package moss talks to the Stanford MOSS software-similarity service.
//
// Uploads use MOSS's own line-oriented TCP protocol: a handshake with
// the user ID and options, one "file" record per upload (base files
// are numbered 0, submissions from 1), a "query" line, and a single
// response line carrying the result URL. Report pages are plain HTTP
// and are downloaded separately, see report.go.
package moss

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultServer is the public MOSS endpoint.
const DefaultServer = "moss.stanford.edu:7690"

// Client accumulates base and submission files, then submits the batch
// in one Send call.
type Client struct {
	UserID   string
	Server   string
	Language string

	// IgnoreLimit suppresses passages appearing in more than this many
	// submissions (MOSS option "maxmatches" aka -m).
	IgnoreLimit int
	// MatchingFileLimit caps the number of file pairs in the report
	// (MOSS option "show" aka -n).
	MatchingFileLimit int

	Log *zap.Logger

	baseFiles []string
	files     []string
}

// NewClient returns a client with the standard tuning for notebook
// plagiarism checks.
func NewClient(userID, language string, log *zap.Logger) *Client {
	return &Client{
		UserID:            userID,
		Server:            DefaultServer,
		Language:          language,
		IgnoreLimit:       3,
		MatchingFileLimit: 100,
		Log:               log,
	}
}

// AddBaseFile registers a reference file whose content MOSS ignores in
// every comparison. The assignment skeleton goes here so shared
// boilerplate never counts as a match.
func (c *Client) AddBaseFile(path string) {
	c.baseFiles = append(c.baseFiles, path)
}

// AddFile registers a student submission for comparison.
func (c *Client) AddFile(path string) {
	c.files = append(c.files, path)
}

// Send uploads the batch and returns the report URL. The call blocks
// until the service has processed the batch, which can take minutes
// for large courses.
func (c *Client) Send(ctx context.Context) (string, error) {
	if len(c.files) == 0 {
		return "", fmt.Errorf("moss: no submission files registered")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.Server)
	if err != nil {
		return "", fmt.Errorf("moss: cannot connect to %s: %w", c.Server, err)
	}
	defer conn.Close()
	r := bufio.NewReader(conn)

	opts := []string{
		fmt.Sprintf("moss %s", c.UserID),
		"directory 0",
		"X 0",
		fmt.Sprintf("maxmatches %d", c.IgnoreLimit),
		fmt.Sprintf("show %d", c.MatchingFileLimit),
	}
	for _, line := range opts {
		if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
			return "", fmt.Errorf("moss: handshake failed: %w", err)
		}
	}

	if _, err := fmt.Fprintf(conn, "language %s\n", c.Language); err != nil {
		return "", fmt.Errorf("moss: handshake failed: %w", err)
	}
	answer, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("moss: no language acknowledgement: %w", err)
	}
	if strings.TrimSpace(answer) != "yes" {
		fmt.Fprintf(conn, "end\n")
		return "", fmt.Errorf("moss: language %q not accepted by server", c.Language)
	}

	for _, path := range c.baseFiles {
		if err := c.uploadFile(conn, path, 0); err != nil {
			return "", err
		}
	}
	for i, path := range c.files {
		if err := c.uploadFile(conn, path, i+1); err != nil {
			return "", err
		}
	}

	if _, err := fmt.Fprintf(conn, "query 0 \n"); err != nil {
		return "", fmt.Errorf("moss: query failed: %w", err)
	}
	c.Log.Info("query submitted, waiting for the report URL")
	url, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("moss: no response to query: %w", err)
	}
	fmt.Fprintf(conn, "end\n")

	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http") {
		return "", fmt.Errorf("moss: unexpected server response %q", url)
	}
	return url, nil
}

// uploadFile sends one "file" record: the header line followed by the
// raw bytes. Index 0 marks a base file.
func (c *Client) uploadFile(conn net.Conn, path string, index int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("moss: cannot read %s: %w", path, err)
	}

	// The display name must not contain spaces; MOSS parses its
	// protocol lines on whitespace.
	displayName := strings.ReplaceAll(filepath.ToSlash(path), " ", "_")

	c.Log.Info("uploading file",
		zap.String("file", displayName),
		zap.Int("index", index),
		zap.Int("bytes", len(data)))

	if _, err := fmt.Fprintf(conn, "file %d %s %d %s\n", index, c.Language, len(data), displayName); err != nil {
		return fmt.Errorf("moss: upload of %s failed: %w", path, err)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("moss: upload of %s failed: %w", path, err)
	}
	return nil
}
