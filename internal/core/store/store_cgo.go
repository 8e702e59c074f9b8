//go:build cgo

package store

import (
	// Registers the libsql driver with database/sql; the driver is
	// cgo-only, so registration is limited to cgo builds.
	_ "github.com/tursodatabase/go-libsql"
)
