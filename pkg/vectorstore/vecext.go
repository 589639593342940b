package vectorstore

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Registers sqlite-vec as an auto-loadable extension for every
	// mattn/go-sqlite3 connection, the same registration pattern the corpus
	// uses for its own vec0-backed store.
	vec.Auto()
}
