package options

const (
	// DefaultDataDir specifies the default base directory where the store
	// keeps its segment files when no other directory is configured.
	DefaultDataDir = "/var/lib/ignitekv"

	// CompactionThreshold is the number of stale bytes (superseded Set
	// records, dead Remove records) that accumulate on disk before a set or
	// remove triggers compaction, by default: 1 MiB. Options.CompactionThreshold
	// (see WithCompactionThreshold) can override it.
	CompactionThreshold int64 = 1024 * 1024

	// DefaultWorkerPoolSize is the number of worker goroutines the server
	// uses to service accepted connections.
	DefaultWorkerPoolSize = 4

	// DefaultListenAddr is the default TCP address the server binds and the
	// default address the client connects to.
	DefaultListenAddr = "127.0.0.1:4000"

	// DefaultEngineName is the only storage engine this repository
	// implements; it is what gets persisted to the "engine" marker file.
	DefaultEngineName = "kvs"
)

// defaultOptions holds the baseline configuration for an ignitekv Engine.
var defaultOptions = Options{
	DataDir:             DefaultDataDir,
	CompactionThreshold: CompactionThreshold,
	WorkerPoolSize:      DefaultWorkerPoolSize,
	ListenAddr:          DefaultListenAddr,
	EngineName:          DefaultEngineName,
}

// NewDefaultOptions returns a copy of the baseline configuration.
func NewDefaultOptions() Options {
	return defaultOptions
}
