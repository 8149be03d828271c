package moss

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// SaveReport downloads a single report page to the given path.
func SaveReport(reportURL, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	return fetchToFile(reportURL, outPath)
}

// DownloadReport saves the report index and every linked match page
// into dir. MOSS renders each match as a frameset of four pages
// (matchN.html, matchN-top.html, matchN-0.html, matchN-1.html); all
// four are fetched per match, on up to connections parallel requests.
func DownloadReport(reportURL, dir string, connections int, log *zap.Logger) error {
	if connections < 1 {
		connections = 1
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	base, err := url.Parse(strings.TrimSuffix(reportURL, "/") + "/")
	if err != nil {
		return fmt.Errorf("moss: malformed report URL %q: %w", reportURL, err)
	}

	resp, err := http.Get(reportURL)
	if err != nil {
		return fmt.Errorf("moss: cannot fetch report index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("moss: report index returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("moss: cannot read report index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), body, 0644); err != nil {
		return err
	}

	matches, err := matchLinks(strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("moss: cannot parse report index: %w", err)
	}
	log.Info("downloading match pages",
		zap.Int("matches", len(matches)),
		zap.Int("connections", connections))

	g := new(errgroup.Group)
	g.SetLimit(connections)
	for _, name := range matches {
		for _, page := range framePages(name) {
			pageURL := base.ResolveReference(&url.URL{Path: page}).String()
			outPath := filepath.Join(dir, page)
			g.Go(func() error {
				if err := fetchToFile(pageURL, outPath); err != nil {
					// A missing frame page degrades the saved report
					// but should not abort the rest of the download.
					log.Warn("match page download failed",
						zap.String("url", pageURL), zap.Error(err))
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// matchLinks extracts the matchN.html link targets from the report
// index.
func matchLinks(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				name := path.Base(attr.Val)
				if strings.HasPrefix(name, "match") && strings.HasSuffix(name, ".html") && !seen[name] {
					seen[name] = true
					links = append(links, name)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

// framePages lists the pages making up one match frameset.
func framePages(match string) []string {
	stem := strings.TrimSuffix(match, ".html")
	return []string{
		match,
		stem + "-top.html",
		stem + "-0.html",
		stem + "-1.html",
	}
}

func fetchToFile(pageURL, outPath string) error {
	resp, err := http.Get(pageURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
