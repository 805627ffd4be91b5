// Package sqlstore implements the fact history storage adapter on database/sql.
// The engine packages (postgres, sqlite) supply the connection, schema and Dialect.
package sqlstore

import "fmt"

// Dialect captures the SQL differences between the supported engines
type Dialect struct {
	Name string
	// Placeholder returns the bind marker for the n-th (1-based) argument
	Placeholder func(n int) string
}

// Postgres uses numbered $n placeholders
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

// SQLite uses positional ? placeholders
var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
}

// args accumulates bind arguments and hands out matching placeholders
type args struct {
	dialect Dialect
	values  []interface{}
}

func (a *args) add(v interface{}) string {
	a.values = append(a.values, v)
	return a.dialect.Placeholder(len(a.values))
}
