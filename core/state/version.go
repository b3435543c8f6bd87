package state

import (
	"errors"
	"fmt"
)

// SchemaVersion is the layout of positions, accounts, levels and the pool
// this binary reads and writes.
const SchemaVersion uint32 = 1

var (
	schemaKey = []byte("grid/schema")

	ErrSchemaMismatch = errors.New("state: schema version mismatch")
)

// Schema reports the stamped schema version, if any.
func (m *Manager) Schema() (uint32, bool, error) {
	var stored uint32
	ok, err := m.KVGet(schemaKey, &stored)
	if err != nil {
		return 0, false, err
	}
	return stored, ok, nil
}

// StampSchema records SchemaVersion. Operators call it after migrating.
func (m *Manager) StampSchema() error {
	return m.KVPut(schemaKey, SchemaVersion)
}

// CheckSchema stamps an empty store and otherwise refuses to open a store
// written under a different layout unless allowMigrate is set.
func (m *Manager) CheckSchema(allowMigrate bool) error {
	version, ok, err := m.Schema()
	if err != nil {
		return err
	}
	if !ok {
		tokens, err := m.TokenList()
		if err != nil {
			return err
		}
		if len(tokens) == 0 {
			return m.StampSchema()
		}
	}
	if version == SchemaVersion || allowMigrate {
		return nil
	}
	return fmt.Errorf("%w: stored=%d binary=%d", ErrSchemaMismatch, version, SchemaVersion)
}
