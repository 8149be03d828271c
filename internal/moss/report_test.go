package moss

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const reportIndex = `<html><body>
<table>
<tr><td><a href="match0.html">student_a.py (82%)</a></td>
    <td><a href="match0.html">student_b.py (79%)</a></td></tr>
<tr><td><a href="match1.html">student_c.py (44%)</a></td>
    <td><a href="match1.html">student_d.py (41%)</a></td></tr>
</table>
</body></html>`

func newReportServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, reportIndex)
	})
	mux.HandleFunc("/report/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html>%s</html>", r.URL.Path)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestMatchLinks(t *testing.T) {
	links, err := matchLinks(strings.NewReader(reportIndex))
	require.NoError(t, err)
	// Each match is linked from both columns; duplicates collapse.
	assert.Equal(t, []string{"match0.html", "match1.html"}, links)
}

func TestSaveReport(t *testing.T) {
	srv := newReportServer(t)
	outPath := filepath.Join(t.TempDir(), "report", "report.html")

	require.NoError(t, SaveReport(srv.URL+"/report", outPath))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "match0.html")
}

func TestDownloadReport(t *testing.T) {
	srv := newReportServer(t)
	dir := filepath.Join(t.TempDir(), "report")

	require.NoError(t, DownloadReport(srv.URL+"/report", dir, 4, zap.NewNop()))

	assert.FileExists(t, filepath.Join(dir, "index.html"))
	for _, name := range []string{
		"match0.html", "match0-top.html", "match0-0.html", "match0-1.html",
		"match1.html", "match1-top.html", "match1-0.html", "match1-1.html",
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestDownloadReport_BadIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	err := DownloadReport(srv.URL+"/report", t.TempDir(), 2, zap.NewNop())
	assert.Error(t, err)
}
