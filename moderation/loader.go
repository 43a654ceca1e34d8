package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"path"
	"strings"
	"team-chat/errors"
)

//go:embed censored/*.txt
var CensoredFS embed.FS

const CensoredDir = "censored"

// CensoredData carries the loaded words and the dictionaries they came from.
type CensoredData struct {
	Words     []string
	Languages []string
}

// CensoredLoader reads blacklisted words from a filesystem, one word per line.
type CensoredLoader struct {
	fs fs.FS
}

func NewCensoredLoader(f fs.FS) *CensoredLoader {
	return &CensoredLoader{fs: f}
}

// LoadAll reads every .txt file of dir, the file name being the language
// ("en.txt" -> "en"), and returns the de-duplicated words.
func (l *CensoredLoader) LoadAll(dir string) (*CensoredData, error) {
	entries, err := fs.ReadDir(l.fs, dir)
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(l.fs, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		// Scanner handles \n and \r\n alike
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				uniqueWords[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}
	return &CensoredData{Words: words, Languages: languages}, nil
}
