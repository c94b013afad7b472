package workflow

import (
	"context"
	"os"

	"github.com/tccjustin/axon/internal/launcher"
	"github.com/tccjustin/axon/internal/pathcache"
	"github.com/tccjustin/axon/internal/pathmap"
	"github.com/tccjustin/axon/internal/resolver"
)

// pathResolver searches a tree for a named entry.
type pathResolver interface {
	Resolve(ctx context.Context, req resolver.SearchRequest) (string, error)
	// Locate checks the ancestors of the root before searching down.
	Locate(ctx context.Context, req resolver.SearchRequest) (string, error)
}

// pathCache persists previous resolutions.
type pathCache interface {
	Get(key string) (pathcache.Entry, bool, error)
	Put(e pathcache.Entry) error
	Delete(key string) error
}

// statter re-validates cached paths.
type statter interface {
	Stat(path string) (os.FileInfo, error)
}

// pathTranslator rewrites paths for the executor's namespace.
type pathTranslator interface {
	TranslateRule(path string, from, to pathmap.Convention) (string, string)
}

// processLauncher starts external tools.
type processLauncher interface {
	Launch(ctx context.Context, req launcher.Request) (*launcher.Handle, error)
}
