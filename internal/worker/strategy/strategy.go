// Package strategy holds the content transformations a worker can apply to
// a file. A Strategy is a pure function of its input: it keeps no mutable
// state, performs no I/O and never retries, so a single value is shared by
// every worker without locking.
package strategy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/cuongbtq/file-processor/internal/worker/domain"
)

// Strategy converts the raw content of a file into its processed form
type Strategy interface {
	Process(fileName string, content []byte) (string, error)
}

// Func adapts an ordinary function to the Strategy interface
type Func func(fileName string, content []byte) (string, error)

// Process calls f
func (f Func) Process(fileName string, content []byte) (string, error) {
	return f(fileName, content)
}

// Strategy names accepted in configuration
const (
	NameHash      = "hash"
	NameTextStats = "text_stats"
)

var registry = map[string]Strategy{
	NameHash:      Hash{},
	NameTextStats: TextStats{},
}

// New returns the built-in strategy registered under name
func New(name string) (Strategy, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", domain.ErrUnknownStrategy, name, Names())
	}
	return s, nil
}

// Names lists the built-in strategy names in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HashContent returns the hex encoded SHA-256 digest of content
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
