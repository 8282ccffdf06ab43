package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator creates opaque IDs suitable for external references.
type Generator interface {
	NewID() (string, error)
}

// SortableGenerator produces ids prefixed with the creation time in
// milliseconds, so lexical order tracks recency.
type SortableGenerator struct {
	now func() time.Time
}

func NewSortableGenerator() *SortableGenerator {
	return &SortableGenerator{now: time.Now}
}

func (g *SortableGenerator) NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}

	suffix := strings.ReplaceAll(u.String(), "-", "")[:12]
	return fmt.Sprintf("%013d-%s", g.now().UnixMilli(), suffix), nil
}
