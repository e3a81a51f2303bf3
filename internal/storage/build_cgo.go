//go:build cgosqlite

package storage

// This file is compiled when building with CGO and the cgosqlite tag. FTS5
// must be enabled in go-sqlite3 with its sqlite_fts5 tag.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "cgosqlite sqlite_fts5" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	"database/sql"
	"database/sql/driver"

	sqlite3 "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use. The stock "sqlite3" name is
	// left alone; this one carries the vector function hook.
	DriverName = "sqlite3_equiprag"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(vecDistanceFunc, func(a, b string) (float64, error) {
				v, err := vecDistanceCosine([]driver.Value{a, b})
				if err != nil {
					return 0, err
				}
				d, _ := v.(float64)
				return d, nil
			}, true)
		},
	})
}
