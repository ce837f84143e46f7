package relorm_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golobby/relorm"
)

func TestRelationDefaults(t *testing.T) {
	conn := setup(t)

	rel, err := conn.Relation("posts", "user")
	require.NoError(t, err)
	assert.Equal(t, relorm.BelongsTo{
		Name: "user", Table: "posts", Related: "users", ForeignKey: "user_id", OwnerKey: "id",
	}, rel)

	rel, err = conn.Relation("posts", "comments")
	require.NoError(t, err)
	assert.Equal(t, relorm.HasOneOrMany{
		Name: "comments", Table: "posts", Related: "comments", LocalKey: "id", ForeignKey: "post_id", Many: true,
	}, rel)

	rel, err = conn.Relation("users", "avatar")
	require.NoError(t, err)
	avatar := rel.(relorm.HasOneOrMany)
	assert.False(t, avatar.Many)
	assert.Equal(t, "imageable_id", avatar.ForeignKey)
	assert.True(t, avatar.Morph.Active())

	rel, err = conn.Relation("tags", "posts")
	require.NoError(t, err)
	assert.Equal(t, relorm.BelongsToMany{
		Name: "posts", Table: "tags", Related: "posts", Pivot: "post_tag",
		LocalKey: "id", PivotLocalKey: "tag_id", PivotRelatedKey: "post_id", RelatedKey: "id",
	}, rel)

	_, err = conn.Relation("tags", "nope")
	assert.True(t, errors.Is(err, relorm.ErrUnknownRelation))
	_, err = conn.Relation("nope", "posts")
	assert.True(t, errors.Is(err, relorm.ErrUnknownTable))
}

type entityFunc func(e *relorm.EntityConfigurator)

func (f entityFunc) ConfigureEntity(e *relorm.EntityConfigurator) { f(e) }

func TestDeclarationErrors(t *testing.T) {
	tests := []struct {
		name     string
		entities []relorm.Entity
		reason   string
	}{
		{
			name:     "missing table",
			entities: []relorm.Entity{entityFunc(func(e *relorm.EntityConfigurator) {})},
			reason:   "table name is mandatory",
		},
		{
			name: "registered twice",
			entities: []relorm.Entity{
				entityFunc(func(e *relorm.EntityConfigurator) { e.Table("a") }),
				entityFunc(func(e *relorm.EntityConfigurator) { e.Table("a") }),
			},
			reason: "registered twice",
		},
		{
			name: "unknown related table",
			entities: []relorm.Entity{entityFunc(func(e *relorm.EntityConfigurator) {
				e.Table("a").HasMany(nil, relorm.HasManyConfig{PropertyTable: "b"})
			})},
			reason: "not registered",
		},
		{
			name: "undeclared key column",
			entities: []relorm.Entity{
				entityFunc(func(e *relorm.EntityConfigurator) {
					e.Table("posts").Columns("id").HasMany(nil, relorm.HasManyConfig{PropertyTable: "comments"})
				}),
				entityFunc(func(e *relorm.EntityConfigurator) { e.Table("comments").Columns("id", "body") }),
			},
			reason: "column post_id is not declared on comments",
		},
		{
			name: "morph without value",
			entities: []relorm.Entity{
				entityFunc(func(e *relorm.EntityConfigurator) {
					e.Table("posts").HasMany(nil, relorm.HasManyConfig{
						PropertyTable: "images",
						Morph:         relorm.Morph{Column: "imageable_type"},
					})
				}),
				entityFunc(func(e *relorm.EntityConfigurator) { e.Table("images") }),
			},
			reason: "has no value",
		},
		{
			name: "same pivot keys",
			entities: []relorm.Entity{
				entityFunc(func(e *relorm.EntityConfigurator) {
					e.Table("users").BelongsToMany(nil, relorm.BelongsToManyConfig{
						Name:                   "friends",
						ForeignTable:           "users",
						IntermediateTable:      "friendships",
						IntermediateOwnerID:    "user_id",
						IntermediatePropertyID: "user_id",
					})
				}),
			},
			reason: "must differ",
		},
		{
			name: "duplicate relation name",
			entities: []relorm.Entity{
				entityFunc(func(e *relorm.EntityConfigurator) {
					e.Table("posts").
						HasMany(nil, relorm.HasManyConfig{PropertyTable: "comments"}).
						HasMany(nil, relorm.HasManyConfig{PropertyTable: "comments"})
				}),
				entityFunc(func(e *relorm.EntityConfigurator) { e.Table("comments") }),
			},
			reason: "declared twice",
		},
		{
			name: "no primary key",
			entities: []relorm.Entity{entityFunc(func(e *relorm.EntityConfigurator) {
				e.Table("logs").Columns("message")
			})},
			reason: "primary key is not defined",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := relorm.Open(relorm.ConnectionConfig{Driver: "sqlite3", ConnectionString: ":memory:", Entities: tt.entities})
			require.Error(t, err)
			var de *relorm.DeclarationError
			require.True(t, errors.As(err, &de), "got %T: %v", err, err)
			assert.Contains(t, de.Error(), tt.reason)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := relorm.Open(relorm.ConnectionConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestSelfReferencingBelongsToMany(t *testing.T) {
	conn, err := relorm.Open(relorm.ConnectionConfig{Driver: "sqlite3", ConnectionString: ":memory:", Entities: []relorm.Entity{
		entityFunc(func(e *relorm.EntityConfigurator) {
			e.Table("users").BelongsToMany(nil, relorm.BelongsToManyConfig{
				Name:                   "friends",
				ForeignTable:           "users",
				IntermediateTable:      "friendships",
				IntermediateOwnerID:    "user_id",
				IntermediatePropertyID: "friend_id",
			})
		}),
	}})
	require.NoError(t, err)
	rel, err := conn.Relation("users", "friends")
	require.NoError(t, err)
	assert.Equal(t, "friendships", rel.(relorm.BelongsToMany).Pivot)
}

func TestSchematic(t *testing.T) {
	conn := setup(t)
	var buf bytes.Buffer
	conn.Schematic(&buf)
	out := buf.String()
	assert.Contains(t, out, "SQL Dialect: sqlite3")
	assert.Contains(t, out, "Table: posts")
	assert.Contains(t, out, "posts.id = post_tag.post_id, post_tag.tag_id = tags.id")
	assert.Contains(t, out, "imageable_type = users")
	assert.Contains(t, out, "N-N")
}
