package ingest

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NameGenerator hands out upload file names built from a millisecond timestamp.
// Timestamps are strictly increasing within a process, so two requests arriving
// in the same millisecond still get distinct names.
type NameGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewNameGenerator() *NameGenerator {
	return &NameGenerator{now: time.Now}
}

// Next returns "<millis><ext>".
func (g *NameGenerator) Next(ext string) string {
	g.mu.Lock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	return strconv.FormatInt(ms, 10) + ext
}

// Disambiguate is used when Next collides with a file written by another process
// sharing the upload directory.
func (g *NameGenerator) Disambiguate(name string) string {
	ext := ""
	if i := strings.LastIndex(name, "."); i > 0 {
		name, ext = name[:i], name[i:]
	}
	return name + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8] + ext
}
