package generator

import (
	"strings"

	"github.com/google/uuid"
)

// Generator yields successive values, such as identifiers.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDGenerator produces random (version 4) UUIDs. Compact drops the hyphens.
type UUIDGenerator struct {
	Compact bool
}

func (g *UUIDGenerator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	if g.Compact {
		return strings.ReplaceAll(id.String(), "-", ""), nil
	}
	return id.String(), nil
}

var _ Generator[string] = (*UUIDGenerator)(nil)
