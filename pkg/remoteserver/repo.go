package remoteserver

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
)

// repo serves files out of an on-disk archive-z2 repository: config at
// root/config, refs at root/refs/heads/<ref>, loose objects at
// root/objects/<relative path>.
type repo struct {
	root string
}

// resolve joins root with the request-supplied suffix and rejects any
// result that escapes root (e.g. via "../" segments), the same
// path-traversal guard net/http.Dir applies internally.
func (s *repo) resolve(suffix string) (string, bool) {
	clean := filepath.Join(s.root, filepath.FromSlash(suffix))
	rel, err := filepath.Rel(s.root, clean)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return clean, true
}

func (s *repo) serveFile(w http.ResponseWriter, r *http.Request, relPath string) {
	path, ok := s.resolve(relPath)
	if !ok {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (s *repo) serveConfig(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, r, "config")
}

func (s *repo) serveRefHead(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "*")
	s.serveFile(w, r, filepath.Join("refs", "heads", ref))
}

func (s *repo) serveObject(w http.ResponseWriter, r *http.Request) {
	objPath := chi.URLParam(r, "*")
	s.serveFile(w, r, filepath.Join("objects", objPath))
}

// serveSummary serves root/refs/summary verbatim if present, or
// synthesizes one by walking root/refs/heads for every ref file — a
// convenience for repos populated by writing refs/heads/<ref> files
// directly and never materializing a summary file, using the
// "<digest> <ref>" line format.
func (s *repo) serveSummary(w http.ResponseWriter, r *http.Request) {
	summaryPath, _ := s.resolve("refs/summary")
	if data, err := os.ReadFile(summaryPath); err == nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(data)
		return
	}

	headsDir, _ := s.resolve(filepath.Join("refs", "heads"))
	if _, err := os.Stat(headsDir); os.IsNotExist(err) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		return
	}

	var lines []string
	err := filepath.WalkDir(headsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(headsDir, path)
		if relErr != nil {
			return relErr
		}
		digest, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		lines = append(lines, strings.TrimSpace(string(digest))+" "+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sort.Strings(lines)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, line := range lines {
		_, _ = w.Write([]byte(line + "\n"))
	}
}
