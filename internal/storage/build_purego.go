//go:build !cgosqlite

package storage

// This file is compiled by default. It uses the pure Go SQLite
// implementation, which ships FTS5, and registers vec_distance_cosine as a
// Go scalar function.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	"database/sql/driver"

	sqlite "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

func init() {
	// Registration fails only for duplicate names, which cannot happen here
	_ = sqlite.RegisterDeterministicScalarFunction(vecDistanceFunc, 2, vecDistanceCosineImpl)
}

func vecDistanceCosineImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return vecDistanceCosine(args)
}
