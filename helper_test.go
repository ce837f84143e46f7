package relorm_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/golobby/relorm"
)

type User struct{}

func (User) ConfigureEntity(e *relorm.EntityConfigurator) {
	e.Table("users").Columns("id", "name").
		HasMany(Post{}, relorm.HasManyConfig{}).
		HasOne(Image{}, relorm.HasOneConfig{
			Name:               "avatar",
			PropertyForeignKey: "imageable_id",
			Morph:              relorm.Morph{Column: "imageable_type", Value: "users"},
		})
}

type Post struct{}

func (Post) ConfigureEntity(e *relorm.EntityConfigurator) {
	e.Table("posts").Columns("id", "user_id", "title").
		BelongsTo(User{}, relorm.BelongsToConfig{}).
		HasMany(Comment{}, relorm.HasManyConfig{}).
		HasMany(Image{}, relorm.HasManyConfig{
			PropertyForeignKey: "imageable_id",
			Morph:              relorm.Morph{Column: "imageable_type", Value: "posts"},
		}).
		BelongsToMany(Tag{}, relorm.BelongsToManyConfig{PivotColumns: []string{"weight"}})
}

type Comment struct{}

func (Comment) ConfigureEntity(e *relorm.EntityConfigurator) {
	e.Table("comments")
	e.Field("ID").IsPrimaryKey()
	e.Field("PostID")
	e.Field("Body")
	e.BelongsTo(Post{}, relorm.BelongsToConfig{})
}

type Image struct{}

func (Image) ConfigureEntity(e *relorm.EntityConfigurator) {
	e.Table("images").Columns("id", "imageable_id", "imageable_type", "url").
		BelongsTo(Post{}, relorm.BelongsToConfig{
			LocalForeignKey: "imageable_id",
			Morph:           relorm.Morph{Column: "imageable_type", Value: "posts"},
		})
}

type Tag struct{}

func (Tag) ConfigureEntity(e *relorm.EntityConfigurator) {
	e.Table("tags").Columns("id", "name").
		BelongsToMany(Post{}, relorm.BelongsToManyConfig{})
}

func entities() []relorm.Entity {
	return []relorm.Entity{User{}, Post{}, Comment{}, Image{}, Tag{}}
}

var fixtures = []string{
	`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`,
	`CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER, title TEXT)`,
	`CREATE TABLE comments (id INTEGER PRIMARY KEY, post_id INTEGER, body TEXT)`,
	`CREATE TABLE images (id INTEGER PRIMARY KEY, imageable_id INTEGER, imageable_type TEXT, url TEXT)`,
	`CREATE TABLE tags (id INTEGER PRIMARY KEY, name TEXT)`,
	`CREATE TABLE post_tag (post_id INTEGER, tag_id INTEGER, weight INTEGER, PRIMARY KEY(post_id, tag_id))`,

	`INSERT INTO users (id, name) VALUES (1, 'alice'), (2, 'bob'), (3, 'carol')`,
	`INSERT INTO posts (id, user_id, title) VALUES (1, 1, 'first'), (2, 1, 'second'), (3, 2, 'third')`,
	`INSERT INTO comments (id, post_id, body) VALUES (1, 1, 'a'), (2, 1, 'b'), (3, 2, 'c')`,
	`INSERT INTO images (id, imageable_id, imageable_type, url) VALUES
		(1, 1, 'posts', 'p1.png'), (2, 1, 'users', 'alice.png'), (3, 3, 'posts', 'p3.png')`,
	`INSERT INTO tags (id, name) VALUES (1, 'go'), (2, 'sql'), (3, 'orm')`,
	`INSERT INTO post_tag (post_id, tag_id, weight) VALUES (1, 1, 10), (1, 2, 20), (2, 2, 30)`,
}

// setup opens a seeded in-memory sqlite database. A single connection keeps
// every statement on the same memory database.
func setup(t testing.TB, opts ...func(*relorm.ConnectionConfig)) *relorm.Connection {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	for _, stmt := range fixtures {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	conf := relorm.ConnectionConfig{
		Driver:   "sqlite3",
		DB:       db,
		Entities: entities(),
	}
	for _, opt := range opts {
		opt(&conf)
	}
	conn, err := relorm.Open(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func names(rows []*relorm.Row, column string) []interface{} {
	out := []interface{}{}
	for _, r := range rows {
		out = append(out, r.Get(column))
	}
	return out
}
