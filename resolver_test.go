package relorm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golobby/relorm"
	"github.com/golobby/relorm/qb"
)

func TestEagerHasMany(t *testing.T) {
	conn := setup(t)
	q := conn.Table("posts")
	q.OrderBy("id", "asc").With("comments")
	posts, err := q.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, posts.Len())

	assert.Equal(t, []interface{}{"a", "b"}, names(posts.At(0).Many("comments"), "body"))
	assert.Equal(t, []interface{}{"c"}, names(posts.At(1).Many("comments"), "body"))

	empty, loaded := posts.At(2).Related("comments")
	assert.True(t, loaded)
	assert.NotNil(t, empty)
	assert.Len(t, posts.At(2).Many("comments"), 0)
}

func TestEagerBelongsToSharesOwners(t *testing.T) {
	conn := setup(t)
	q := conn.Table("posts")
	q.OrderBy("id", "asc").With("user")
	posts, err := q.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "alice", posts.At(0).One("user").Get("name"))
	assert.Equal(t, "alice", posts.At(1).One("user").Get("name"))
	assert.Equal(t, "bob", posts.At(2).One("user").Get("name"))
	assert.Len(t, posts.Related("user"), 3)
}

func TestEagerBelongsToQueriesDistinctKeys(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	conn, err := relorm.Open(relorm.ConnectionConfig{Driver: "postgres", DB: db, Entities: entities()})
	require.NoError(t, err)

	mock.ExpectQuery(`select * from posts`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title"}).
			AddRow(1, 1, "first").AddRow(2, 1, "second").AddRow(3, 2, "third").AddRow(4, nil, "orphan"))
	mock.ExpectQuery(`select * from users where id in ($1,$2)`).
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "alice").AddRow(2, "bob"))

	q := conn.Table("posts")
	q.With("user")
	posts, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Nil(t, posts.At(3).One("user"))
	_, loaded := posts.At(3).Related("user")
	assert.True(t, loaded)
}

func TestEagerConstraintCannotWidenKeys(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	conn, err := relorm.Open(relorm.ConnectionConfig{Driver: "mysql", DB: db, Entities: entities()})
	require.NoError(t, err)

	mock.ExpectQuery("select * from posts where id = ?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title"}).AddRow(1, 1, "first"))
	mock.ExpectQuery("select * from comments where post_id in (?) and (body = ? or body = ?)").
		WithArgs(1, "a", "c").
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "body"}).AddRow(1, 1, "a"))

	q := conn.Table("posts")
	q.Where("id", 1).WithFunc("comments", func(b *qb.Builder) *qb.Builder {
		return b.Where("body", "a").OrWhere("body", "c")
	}, nil)
	posts, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Len(t, posts.First().Many("comments"), 1)
}

func TestEagerMorph(t *testing.T) {
	conn := setup(t)
	ctx := context.Background()

	t.Run("has one only matches its type", func(t *testing.T) {
		q := conn.Table("users")
		q.OrderBy("id", "asc").With("avatar")
		users, err := q.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, users.At(0).One("avatar"))
		assert.Equal(t, "alice.png", users.At(0).One("avatar").Get("url"))
		assert.Nil(t, users.At(1).One("avatar"))
	})

	t.Run("has many only matches its type", func(t *testing.T) {
		q := conn.Table("posts")
		q.OrderBy("id", "asc").With("images")
		posts, err := q.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"p1.png"}, names(posts.At(0).Many("images"), "url"))
		assert.Empty(t, posts.At(1).Many("images"))
		assert.Equal(t, []interface{}{"p3.png"}, names(posts.At(2).Many("images"), "url"))
	})

	t.Run("belongs to skips rows of another type", func(t *testing.T) {
		q := conn.Table("images")
		q.OrderBy("id", "asc").With("post")
		images, err := q.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "first", images.At(0).One("post").Get("title"))
		assert.Nil(t, images.At(1).One("post"))
		assert.Equal(t, "third", images.At(2).One("post").Get("title"))
	})
}

func TestEagerBelongsToMany(t *testing.T) {
	conn := setup(t)
	q := conn.Table("posts")
	q.OrderBy("id", "asc").WithFunc("tags", func(b *qb.Builder) *qb.Builder {
		return b.OrderBy("id", "asc")
	}, nil)
	posts, err := q.Get(context.Background())
	require.NoError(t, err)

	first := posts.At(0).Many("tags")
	require.Len(t, first, 2)
	assert.Equal(t, []interface{}{"go", "sql"}, names(first, "name"))
	assert.EqualValues(t, 10, first[0].Pivot().Get("weight"))
	assert.EqualValues(t, 20, first[1].Pivot().Get("weight"))

	second := posts.At(1).Many("tags")
	require.Len(t, second, 1)
	assert.EqualValues(t, 30, second[0].Pivot().Get("weight"))
	assert.EqualValues(t, 20, first[1].Pivot().Get("weight"), "pivot rows are per attachment")

	assert.NotNil(t, posts.At(2).Many("tags"))
	assert.Empty(t, posts.At(2).Many("tags"))
}

func TestEagerBelongsToManyKeepsRelatedOrder(t *testing.T) {
	conn := setup(t)
	q := conn.Table("posts")
	q.OrderBy("id", "asc").WithFunc("tags", func(b *qb.Builder) *qb.Builder {
		return b.OrderByDesc("id")
	}, nil)
	posts, err := q.Get(context.Background())
	require.NoError(t, err)

	tags := posts.At(0).Many("tags")
	assert.Equal(t, []interface{}{"sql", "go"}, names(tags, "name"))
	assert.EqualValues(t, 20, tags[0].Pivot().Get("weight"))
	assert.EqualValues(t, 10, tags[1].Pivot().Get("weight"))
}

func TestEagerBelongsToManyReadsPivotFirst(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	conn, err := relorm.Open(relorm.ConnectionConfig{Driver: "sqlite3", DB: db, Entities: entities()})
	require.NoError(t, err)

	mock.ExpectQuery("select * from tags").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "go").AddRow(2, "sql"))
	mock.ExpectQuery("select * from post_tag where tag_id in (?,?)").
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"post_id", "tag_id"}).AddRow(5, 1).AddRow(6, 1).AddRow(5, 2))
	mock.ExpectQuery("select * from posts where id in (?,?)").
		WithArgs(5, 6).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title"}).AddRow(5, 1, "x").AddRow(6, 1, "y"))

	q := conn.Table("tags")
	q.With("posts")
	tags, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Len(t, tags.At(0).Many("posts"), 2)
	assert.Len(t, tags.At(1).Many("posts"), 1)
	assert.Len(t, tags.Related("posts"), 3)
}

func TestEagerNested(t *testing.T) {
	conn := setup(t)
	q := conn.Table("users")
	q.OrderBy("id", "asc").With("posts.comments", "posts.user")
	users, err := q.Get(context.Background())
	require.NoError(t, err)

	posts := users.At(0).Many("posts")
	require.Len(t, posts, 2)
	total := 0
	for _, p := range posts {
		total += len(p.Many("comments"))
		assert.Equal(t, "alice", p.One("user").Get("name"))
	}
	assert.Equal(t, 3, total)
	assert.Empty(t, users.At(2).Many("posts"))
}

func TestEagerConcurrent(t *testing.T) {
	conn := setup(t, func(c *relorm.ConnectionConfig) { c.EagerConcurrency = 4 })
	q := conn.Table("posts")
	q.OrderBy("id", "asc").With("user", "comments", "tags", "images")
	posts, err := q.Get(context.Background())
	require.NoError(t, err)

	p := posts.At(0)
	assert.Equal(t, "alice", p.One("user").Get("name"))
	assert.Len(t, p.Many("comments"), 2)
	assert.Len(t, p.Many("tags"), 2)
	assert.Len(t, p.Many("images"), 1)
}

func TestLoadIsIdempotent(t *testing.T) {
	conn := setup(t)
	ctx := context.Background()
	posts, err := conn.Table("posts").Get(ctx)
	require.NoError(t, err)

	require.NoError(t, conn.Load(ctx, posts, "comments"))
	assert.Len(t, posts.Related("comments"), 3)
	require.NoError(t, conn.Load(ctx, posts, "comments"))
	assert.Len(t, posts.Related("comments"), 3)

	row := posts.First()
	require.NoError(t, conn.LoadRow(ctx, row, "user"))
	assert.Equal(t, "alice", row.One("user").Get("name"))
	assert.Equal(t, "first", row.Get("title"), "loading never changes column values")
}

func TestEagerUnknownRelation(t *testing.T) {
	conn := setup(t)
	q := conn.Table("posts")
	q.With("nope")
	_, err := q.Get(context.Background())
	assert.True(t, errors.Is(err, relorm.ErrUnknownRelation))
}
