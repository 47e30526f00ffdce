package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Generator derives a blob key from the submitted filename.
type Generator interface {
	GenerateKey(fileName string) string
}

// Strategy names accepted by New.
const (
	StrategyFilename     = "filename"
	StrategyRandomSuffix = "random-suffix"
	StrategySharded      = "sharded"
)

// FilenameGenerator uses the sanitized filename as the key. Uploading the
// same name twice overwrites the earlier blob. Names that sanitize to nothing
// get a random key.
type FilenameGenerator struct{}

func NewFilenameGenerator() *FilenameGenerator {
	return &FilenameGenerator{}
}

func (g *FilenameGenerator) GenerateKey(fileName string) string {
	if name := sanitizeFilename(fileName); name != "" {
		return name
	}
	return randomHex(16)
}

// RandomSuffixGenerator keeps the filename readable and appends a random
// suffix before the extension: sunset.png -> sunset-3f9c2a1b.png
type RandomSuffixGenerator struct {
	// SuffixLength is the number of hex characters appended (default: 8)
	SuffixLength int
}

func NewRandomSuffixGenerator() *RandomSuffixGenerator {
	return &RandomSuffixGenerator{SuffixLength: 8}
}

func (g *RandomSuffixGenerator) GenerateKey(fileName string) string {
	name := sanitizeFilename(fileName)
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	length := g.SuffixLength
	if length <= 0 {
		length = 8
	}
	suffix := randomHex(length)

	if base == "" {
		return suffix + ext
	}
	return fmt.Sprintf("%s-%s%s", base, suffix, ext)
}

// ShardedGenerator spreads keys over Git-style shard directories:
// images/ab/cd1234ef5678_sunset.png
type ShardedGenerator struct {
	// Prefix is the top-level directory (default: "images")
	Prefix string
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{Prefix: "images", ShardLength: 2}
}

func (g *ShardedGenerator) GenerateKey(fileName string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")

	shardLength := g.ShardLength
	if shardLength <= 0 || shardLength > len(id) {
		shardLength = 2
	}
	shardDir := id[:shardLength]
	remaining := id[shardLength:]

	filename := remaining
	if name := sanitizeFilename(fileName); name != "" {
		filename = fmt.Sprintf("%s_%s", remaining, name)
	}

	prefix := g.Prefix
	if prefix == "" {
		prefix = "images"
	}
	return fmt.Sprintf("%s/%s/%s", sanitizePathComponent(prefix), shardDir, filename)
}

// New returns the generator for strategy. An empty strategy selects random-suffix.
func New(strategy string) (Generator, error) {
	switch strategy {
	case "", StrategyRandomSuffix:
		return NewRandomSuffixGenerator(), nil
	case StrategyFilename:
		return NewFilenameGenerator(), nil
	case StrategySharded:
		return NewShardedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown object key strategy: %s", strategy)
	}
}

// Default returns the generator used when a backend is given none.
func Default() Generator {
	return NewRandomSuffixGenerator()
}

func randomHex(n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return b.String()[:n]
}

// Helper functions for path sanitization
func sanitizeFilename(filename string) string {
	// Drop any directory part a client may have sent
	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if filename == "." || filename == "/" || filename == ".." {
		return ""
	}
	replacer := strings.NewReplacer(
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"#", "_",
		"%", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return strings.ToLower(replacer.Replace(component))
}
