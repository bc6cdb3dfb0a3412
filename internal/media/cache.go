package media

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

// Probing a device or a container is slow (format and frame size
// enumeration, full packet scans), so results are cached by name.
var infoCache = struct {
	sync.Mutex
	*lru.Cache
}{Cache: lru.New(32)}

// cached returns the value stored under key, calling probe on a miss. Failed
// probes are not cached.
func cached(key string, probe func() (interface{}, error)) (interface{}, error) {
	infoCache.Lock()
	v, ok := infoCache.Get(key)
	infoCache.Unlock()
	if ok {
		log.Trace(2, "info cache hit: %s", key)
		return v, nil
	}

	v, err := probe()
	if err != nil {
		return nil, err
	}
	infoCache.Lock()
	infoCache.Add(key, v)
	infoCache.Unlock()
	return v, nil
}

// forget drops a cached entry, e.g. after the device was reconfigured.
func forget(key string) {
	infoCache.Lock()
	infoCache.Remove(key)
	infoCache.Unlock()
}
