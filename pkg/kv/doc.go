// Package kv provides the small string key-value store npmlens keeps user
// state in, such as the favorites list.
//
// Backends:
//   - [MemoryStore]: in-process, for tests and throwaway sessions
//   - [FileStore]: a single JSON object file
//   - [SQLiteStore]: a SQLite database (the default, pure Go via modernc.org/sqlite)
//   - [RedisStore]: a Redis server, for sharing state across machines
//   - [MongoStore]: a MongoDB collection
//
// [Open] picks a backend from a URL:
//
//	store, err := kv.Open(ctx, "sqlite:/home/me/.config/npmlens/npmlens.db", kv.Options{})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
package kv
