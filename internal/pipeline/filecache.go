package pipeline

import (
	"bufio"
	"os"

	"loov.dev/asmdiff/internal/report"
)

// fileContentCache maps a source file path to its loaded content, with
// a single-entry most-recently-used hint for the common case of
// repeatedly asking about the same file across consecutive records.
// Only the Coordinator writes to it; workers only read through Find.
type fileContentCache struct {
	files map[string]*report.TextFileContent
	mru   string
}

func newFileContentCache() fileContentCache {
	return fileContentCache{files: make(map[string]*report.TextFileContent)}
}

// Find returns the cached content for name, or nil if it isn't loaded.
func (c *fileContentCache) Find(name string) *report.TextFileContent {
	if name == "" {
		return nil
	}
	if name == c.mru {
		if content, ok := c.files[name]; ok {
			return content
		}
	}
	if content, ok := c.files[name]; ok {
		c.mru = name
		return content
	}
	return nil
}

// Load reads name from disk into the cache if it isn't already
// present. loaded reports whether this call actually performed the
// read (false both when it was already cached and when it failed).
func (c *fileContentCache) Load(name string) (loaded bool, err error) {
	if _, ok := c.files[name]; ok {
		return false, nil
	}

	f, err := os.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return false, err
	}

	c.files[name] = &report.TextFileContent{Filename: name, Lines: lines}
	c.mru = name
	return true, nil
}

// Flush discards every cached file except those named in keep; used
// between SourceFile bundles so the cache holds only the files actively
// being rendered.
func (c *fileContentCache) Flush(keep ...string) {
	keepSet := make(map[string]bool, len(keep))
	for _, name := range keep {
		if name != "" {
			keepSet[name] = true
		}
	}
	for name := range c.files {
		if !keepSet[name] {
			delete(c.files, name)
		}
	}
	if !keepSet[c.mru] {
		c.mru = ""
	}
}

// Size returns the number of distinct files currently cached.
func (c *fileContentCache) Size() int {
	return len(c.files)
}
