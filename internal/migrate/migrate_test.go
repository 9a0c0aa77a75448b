package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMigration_HashIsStableForIdenticalBody(t *testing.T) {
	a := NewMigration("001_x", "create index on foo", nil)
	b := NewMigration("001_x", "create index on foo", nil)
	assert.Equal(t, a.Hash, b.Hash)
}

func TestNewMigration_HashChangesWithBody(t *testing.T) {
	a := NewMigration("001_x", "create index on foo", nil)
	b := NewMigration("001_x", "create index on foo, drop old one", nil)
	assert.NotEqual(t, a.Hash, b.Hash)
}

func TestBuiltin_HasNoDuplicateNames(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Builtin() {
		assert.False(t, seen[m.Name], "duplicate migration name %q", m.Name)
		seen[m.Name] = true
		assert.NotEmpty(t, m.Hash)
		assert.NotNil(t, m.Up)
	}
}

func TestBuiltin_SeedProfileIsLastMigration(t *testing.T) {
	migrations := Builtin()
	assert.Equal(t, "008_seed_default_profile", migrations[len(migrations)-1].Name)
}
