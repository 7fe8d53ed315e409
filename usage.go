package nativemodule

// CacheUsage reports the code cache held for each module and how modules
// were compiled so far.
type CacheUsage struct {
	// Bytes is the size of the code cache of every module that has one.
	Bytes map[string]int `json:"bytes"`

	// CompiledWithCache lists modules compiled from an accepted code cache.
	CompiledWithCache []string `json:"compiled_with_cache"`

	// CompiledWithoutCache lists modules compiled from source.
	CompiledWithoutCache []string `json:"compiled_without_cache"`
}

// TotalBytes returns the combined size of all code caches.
func (u CacheUsage) TotalBytes() int {
	var total int
	for _, n := range u.Bytes {
		total += n
	}
	return total
}

// CacheUsage returns the current code cache usage.
func (l *Loader) CacheUsage() CacheUsage {
	with, without := l.stats.lists()
	return CacheUsage{
		Bytes:                l.cache.Snapshot(),
		CompiledWithCache:    with,
		CompiledWithoutCache: without,
	}
}
