package domain

// Inbound events from the content-transfer subsystem. The engine consumes
// these in arrival order; it never polls the transfer layer itself.

type ContentAdded struct {
	ID        string
	Name      string
	InfoHash  string
	FileCount int
}

type ContentCompleted struct {
	ID string
}

type ContentMetadata struct {
	ID   string
	Name string
}

type ContentState string

const (
	ContentStateDownloading  ContentState = "downloading"
	ContentStateCompleted    ContentState = "completed"
	ContentStatePaused       ContentState = "paused"
	ContentStateInitializing ContentState = "initializing"
	ContentStateError        ContentState = "error"
)

type ContentProgress struct {
	ID            string
	State         ContentState
	TotalBytes    int64
	UploadedBytes int64
}

type WatchFolderDetected struct {
	Path        string
	ContentID   string
	ContentName string
}

// ContentAttributes is the subset of content state the condition evaluator
// sees. Nil pointers mean the attribute is not yet known (e.g. size before
// metadata arrives).
type ContentAttributes struct {
	Name      string
	TotalSize *int64
	FileCount *int
}

// FileInfo describes one file of a content item, as handed to executors.
type FileInfo struct {
	Index int
	Name  string
	Path  string
	Size  int64
}

// ContentInfo is the resolver's view of a content item.
type ContentInfo struct {
	ID        string
	Name      string
	TotalSize int64
	FileCount int
	Complete  bool
	Files     []FileInfo
}

// Attributes projects a ContentInfo onto evaluator attributes.
func (c ContentInfo) Attributes() ContentAttributes {
	attrs := ContentAttributes{Name: c.Name}
	if c.TotalSize > 0 {
		size := c.TotalSize
		attrs.TotalSize = &size
	}
	if c.FileCount > 0 {
		count := c.FileCount
		attrs.FileCount = &count
	}
	return attrs
}
