package qb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Run("select with where", func(t *testing.T) {
		sql, args, err := New(Dialects.MySQL, "student").Where("id", "=", 3).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from student where id = ?", sql)
		assert.Equal(t, []interface{}{3}, args)
	})

	t.Run("where with a single value compares with equality", func(t *testing.T) {
		sql, args, err := New(Dialects.SQLite3, "users").Where("name", "amirreza").OrWhere("age", ">", 30).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from users where name = ? or age > ?", sql)
		assert.Equal(t, []interface{}{"amirreza", 30}, args)
	})

	t.Run("nil values become null checks", func(t *testing.T) {
		sql, args, err := New(Dialects.MySQL, "users").Where("deleted_at", nil).Where("email", "!=", nil).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from users where deleted_at is null and email is not null", sql)
		assert.Empty(t, args)
	})

	t.Run("where in accepts typed slices", func(t *testing.T) {
		sql, args, err := New(Dialects.PostgreSQL, "users").WhereIn("id", []int64{1, 2, 3}).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from users where id in ($1,$2,$3)", sql)
		assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, args)
	})

	t.Run("empty where in matches nothing", func(t *testing.T) {
		sql, args, err := New(Dialects.MySQL, "users").WhereIn("id", []int{}).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from users where 0 = 1", sql)
		assert.Empty(t, args)

		sql, _, err = New(Dialects.MySQL, "users").WhereNotIn("id", nil).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from users where 1 = 1", sql)
	})

	t.Run("where group is parenthesized", func(t *testing.T) {
		sql, args, err := New(Dialects.MySQL, "users").
			Where("a", 1).
			OrWhereGroup(func(q *Builder) *Builder {
				return q.Where("b", 2).Where("c", 3)
			}).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from users where a = ? or (b = ? and c = ?)", sql)
		assert.Equal(t, []interface{}{1, 2, 3}, args)
	})

	t.Run("sub queries keep placeholder order", func(t *testing.T) {
		orders := New(Dialects.PostgreSQL, "orders").Select("user_id").Where("total", ">", 100)
		sql, args, err := New(Dialects.PostgreSQL, "users").
			Where("active", true).
			WhereInSub("id", orders).
			Where("age", ">", 18).
			ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from users where active = $1 and id in (select user_id from orders where total > $2) and age > $3", sql)
		assert.Equal(t, []interface{}{true, 100, 18}, args)
	})

	t.Run("where exists", func(t *testing.T) {
		sub := New(Dialects.MySQL, "orders").SelectRaw("1").WhereRaw("orders.user_id = users.id")
		sql, _, err := New(Dialects.MySQL, "users").WhereExists(sub).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from users where exists (select 1 from orders where orders.user_id = users.id)", sql)
	})

	t.Run("joins group by and having", func(t *testing.T) {
		sql, args, err := New(Dialects.MySQL, "users").
			Select("users.id").
			SelectRaw("count(*) as total").
			Join("orders", "orders.user_id", "=", "users.id").
			GroupBy("users.id").
			Having("count(*)", ">", 2).
			ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select users.id, count(*) as total from users inner join orders on orders.user_id = users.id group by users.id having count(*) > ?", sql)
		assert.Equal(t, []interface{}{2}, args)
	})

	t.Run("distinct and from sub", func(t *testing.T) {
		inner := New(Dialects.SQLite3, "users").Where("age", ">", 18)
		sql, args, err := New(Dialects.SQLite3, "").Distinct().Select("name").FromSub(inner, "adults").ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select distinct name from (select * from users where age > ?) as adults", sql)
		assert.Equal(t, []interface{}{18}, args)
	})

	t.Run("update with data map", func(t *testing.T) {
		stmt, err := New(Dialects.MySQL, "users").
			Data(map[string]interface{}{"name": "x", "age": 2}).
			Where("id", 1).
			Render(Operation_Update)
		require.NoError(t, err)
		assert.Equal(t, "update users set age = ?, name = ? where id = ?", stmt.SQL)
		assert.Equal(t, []interface{}{2, "x", 1}, stmt.Args)
	})

	t.Run("insert map orders columns", func(t *testing.T) {
		stmt, err := New(Dialects.SQLite3, "users").
			InsertMap(map[string]interface{}{"name": "x", "age": 2}).
			Render(Operation_Insert)
		require.NoError(t, err)
		assert.Equal(t, "insert into users(age,name) values(?,?)", stmt.SQL)
		assert.Equal(t, []interface{}{2, "x"}, stmt.Args)
	})

	t.Run("misuse is reported at render", func(t *testing.T) {
		_, err := New(Dialects.MySQL, "users").Where("id").Render(Operation_Select)
		var be *BuildError
		require.True(t, errors.As(err, &be))

		_, err = New(Dialects.MySQL, "users").Where("id", "~~", 1).Render(Operation_Select)
		assert.Error(t, err)

		_, err = New(Dialects.MySQL, "users").OrderBy("id", "sideways").Render(Operation_Select)
		assert.Error(t, err)
	})

	t.Run("clone isolation", func(t *testing.T) {
		original := New(Dialects.MySQL, "users").Where("a", 1)
		clone := original.Clone()
		clone.Where("b", 2).Limit(5)

		sql, args, err := original.ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from users where a = ?", sql)
		assert.Equal(t, []interface{}{1}, args)

		sql, args, err = clone.ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from users where a = ? and b = ? limit 5", sql)
		assert.Equal(t, []interface{}{1, 2}, args)
	})

	t.Run("scope where in keeps or chains inside", func(t *testing.T) {
		sql, args, err := New(Dialects.SQLite3, "comments").
			Where("a", 1).
			OrWhere("b", 2).
			ScopeWhereIn("post_id", []int{1, 2}).
			ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from comments where post_id in (?,?) and (a = ? or b = ?)", sql)
		assert.Equal(t, []interface{}{1, 2, 1, 2}, args)
	})

	t.Run("limit can be removed", func(t *testing.T) {
		sql, _, err := New(Dialects.PostgreSQL, "users").Limit(3).Limit(-1).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from users", sql)
	})
}

func TestEagerLoads(t *testing.T) {
	t.Run("registry is never merged into where", func(t *testing.T) {
		b := New(Dialects.MySQL, "posts").With("comments")
		sql, _, err := b.ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from posts", sql)
		require.Len(t, b.EagerLoads(), 1)
		assert.Equal(t, "comments", b.EagerLoads()[0].Name)
	})

	t.Run("dotted names register nested loads", func(t *testing.T) {
		b := New(Dialects.MySQL, "users").With("posts.comments", "profile", "posts.tags")
		loads := b.EagerLoads()
		require.Len(t, loads, 2)
		assert.Equal(t, "posts", loads[0].Name)
		assert.Equal(t, "profile", loads[1].Name)

		sub := loads[0].Apply(New(Dialects.MySQL, "posts"))
		var names []string
		for _, l := range sub.EagerLoads() {
			names = append(names, l.Name)
		}
		assert.Equal(t, []string{"comments", "tags"}, names)
	})

	t.Run("constraint runs before nested", func(t *testing.T) {
		b := New(Dialects.MySQL, "users").WithFunc("posts",
			func(q *Builder) *Builder { return q.Where("published", true) },
			func(q *Builder) *Builder { return q.With("comments") },
		)
		sub := b.EagerLoads()[0].Apply(New(Dialects.MySQL, "posts"))
		sql, args, err := sub.ToSql()
		require.NoError(t, err)
		assert.Equal(t, "select * from posts where published = ?", sql)
		assert.Equal(t, []interface{}{true}, args)
		assert.Len(t, sub.EagerLoads(), 1)
	})

	t.Run("clone copies the registry", func(t *testing.T) {
		original := New(Dialects.MySQL, "users").With("posts")
		clone := original.Clone().With("profile").Without("posts")
		assert.Len(t, original.EagerLoads(), 1)
		assert.Equal(t, "posts", original.EagerLoads()[0].Name)
		require.Len(t, clone.EagerLoads(), 1)
		assert.Equal(t, "profile", clone.EagerLoads()[0].Name)
	})
}
