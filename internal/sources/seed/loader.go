package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Loader reads and parses a seed file.
type Loader struct {
	filePath string
	lookup   func(string) (string, bool)
}

// envRef matches ${NAME}. Bare $ is left alone: argon2id hashes and
// shortcut values contain it.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// NewLoader creates a loader for filePath. ${VAR} references in the file are
// expanded from the environment so that secrets stay out of the file.
func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath, lookup: os.LookupEnv}
}

// Load reads and parses the seed file. Unknown fields are rejected.
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	return l.parse(data)
}

func (l *Loader) parse(data []byte) (File, error) {
	var missing []string
	expanded := envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := string(envRef.FindSubmatch(ref)[1])
		v, ok := l.lookup(name)
		if !ok {
			missing = append(missing, name)
		}
		return []byte(v)
	})
	if len(missing) > 0 {
		return File{}, fmt.Errorf("seed file references unset variables: %v", missing)
	}

	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("failed to parse seed yaml: %w", err)
	}
	return f, nil
}
