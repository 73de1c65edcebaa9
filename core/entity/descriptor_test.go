package entity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRow struct {
	ID     uuid.UUID
	Name   string
	Score  int64
	Active bool
}

func idField() *Field[testRow] {
	return UUID("ID",
		func(r *testRow) uuid.UUID { return r.ID },
		func(r *testRow, v uuid.UUID) { r.ID = v },
	)
}

func nameField() *Field[testRow] {
	return String("Name",
		func(r *testRow) string { return r.Name },
		func(r *testRow, v string) { r.Name = v },
	)
}

func TestNewDescriptor(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		d, err := NewDescriptor("rows", idField().Identity(), nameField())
		require.NoError(t, err)
		assert.Equal(t, "rows", d.Table())
		assert.Equal(t, "id", d.IDColumn())
		assert.Equal(t, []string{"id", "name"}, d.Columns())
	})

	t.Run("No Identity", func(t *testing.T) {
		_, err := NewDescriptor("rows", idField(), nameField())
		assert.ErrorIs(t, err, ErrNoIdentity)
	})

	t.Run("Two Identities", func(t *testing.T) {
		_, err := NewDescriptor("rows", idField().Identity(), nameField().Identity())
		assert.ErrorIs(t, err, ErrNoIdentity)
	})

	t.Run("Duplicate Column", func(t *testing.T) {
		_, err := NewDescriptor("rows", idField().Identity(), nameField(), nameField())
		assert.Error(t, err)
	})

	t.Run("Column Override", func(t *testing.T) {
		d, err := NewDescriptor("rows", idField().Identity(), nameField().Column("public_name"))
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "public_name"}, d.Columns())
	})
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"Name":        "name",
		"PublicName":  "public_name",
		"SpriteID":    "sprite_id",
		"ID":          "id",
		"CanStandOn":  "can_stand_on",
		"stackHeight": "stack_height",
	}
	for in, want := range cases {
		assert.Equal(t, want, SnakeCase(in), "SnakeCase(%q)", in)
	}
}

func TestDescriptorID(t *testing.T) {
	d, err := NewDescriptor("rows", idField().Identity(), nameField())
	require.NoError(t, err)

	id := uuid.New()
	row := &testRow{ID: id, Name: "Alice"}
	assert.Equal(t, id, d.ID(row))
}
