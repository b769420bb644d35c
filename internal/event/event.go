package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	PlanStarted Type = iota + 1
	PlanComplete
	FileStaged
	FileStarted
	FileCompleted
	FileFailed
	FileSkipped
	DirCreated
	RemoteCleaned
	VerifyStarted
	VerifyOK
	VerifyFailed
	CleanupWarning
)

var typeNames = [...]string{
	PlanStarted:    "PlanStarted",
	PlanComplete:   "PlanComplete",
	FileStaged:     "FileStaged",
	FileStarted:    "FileStarted",
	FileCompleted:  "FileCompleted",
	FileFailed:     "FileFailed",
	FileSkipped:    "FileSkipped",
	DirCreated:     "DirCreated",
	RemoteCleaned:  "RemoteCleaned",
	VerifyStarted:  "VerifyStarted",
	VerifyOK:       "VerifyOK",
	VerifyFailed:   "VerifyFailed",
	CleanupWarning: "CleanupWarning",
}

func (t Type) String() string {
	if int(t) < len(typeNames) && t > 0 {
		return typeNames[t]
	}
	return "Unknown"
}

// Event is a single progress record emitted by the sync pipeline.
type Event struct {
	Timestamp time.Time
	Path      string // relative path
	Error     error
	Type      Type
	Size      int64 // file size in bytes
	Total     int64 // total files (PlanComplete)
	TotalSize int64 // total bytes (PlanComplete)
}

// Emit sends e on ch without blocking; the event is dropped if the channel
// is full or nil. Progress display is best-effort and must never stall the
// transfer.
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}
