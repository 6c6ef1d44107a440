package strategy

import "fmt"

// Hash summarizes a file by its size and SHA-256 digest
type Hash struct{}

// Process implements Strategy
func (Hash) Process(fileName string, content []byte) (string, error) {
	return fmt.Sprintf("Processed content for %s: Data size %d\nSHA256: %s",
		fileName,
		len(content),
		HashContent(content),
	), nil
}
