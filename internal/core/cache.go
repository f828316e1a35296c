package core

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// PathCacheSize bounds the number of parsed pointers kept in memory.
const PathCacheSize = 4096

var pathCache *lru.Cache[string, Path]

func init() {
	cache, err := lru.New[string, Path](PathCacheSize)
	if err != nil {
		panic(err)
	}
	pathCache = cache
}

// CachedPath returns the parsed form of path, parsing it at most once while it
// stays in the cache. The returned Path is shared and must not be modified;
// Path.Child always copies.
func CachedPath(path string) Path {
	if p, ok := pathCache.Get(path); ok {
		return p
	}
	p := ParsePath(path)
	pathCache.Add(path, p[:len(p):len(p)])
	return p[:len(p):len(p)]
}
