package stage

import (
	"os"
	"sync"
)

// scratchRegistry tracks live scratch directories for defense-in-depth
// cleanup when the process is interrupted.
var globalScratchRegistry = &scratchRegistry{}

type scratchRegistry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func registerScratch(path string) {
	globalScratchRegistry.mu.Lock()
	defer globalScratchRegistry.mu.Unlock()
	if globalScratchRegistry.paths == nil {
		globalScratchRegistry.paths = make(map[string]struct{})
	}
	globalScratchRegistry.paths[path] = struct{}{}
}

func deregisterScratch(path string) {
	globalScratchRegistry.mu.Lock()
	defer globalScratchRegistry.mu.Unlock()
	delete(globalScratchRegistry.paths, path)
}

// CleanupScratchDirs removes all registered scratch directories. Called
// from the interrupt path; a best-effort sweep, errors are discarded.
func CleanupScratchDirs() {
	globalScratchRegistry.mu.Lock()
	paths := make([]string, 0, len(globalScratchRegistry.paths))
	for p := range globalScratchRegistry.paths {
		paths = append(paths, p)
	}
	globalScratchRegistry.paths = nil
	globalScratchRegistry.mu.Unlock()

	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			makeDirsWritable(p)
			_ = os.RemoveAll(p)
		}
	}
}
