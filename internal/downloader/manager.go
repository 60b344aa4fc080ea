package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/sirupsen/logrus"

	"whenthen/internal/domain"
)

// Events is the sink for content lifecycle notifications. The automation
// engine satisfies it; the manager never calls back into engine state
// directly.
type Events interface {
	HandleContentAdded(ev domain.ContentAdded)
	HandleContentCompleted(ev domain.ContentCompleted)
	HandleContentMetadata(ev domain.ContentMetadata)
	HandleContentProgress(ev domain.ContentProgress)
}

// Guard deduplicates external commands while one is already in flight for
// the same content.
type Guard interface {
	Do(command, contentID string, fn func() error) error
}

// Manager owns the torrent client and reports content lifecycle events.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	// AddMagnet and AddTorrentFile report added=false when the torrent was
	// already tracked; no content-added event is emitted in that case.
	AddMagnet(ctx context.Context, uri string) (info domain.ContentInfo, added bool, err error)
	AddTorrentFile(ctx context.Context, path string) (info domain.ContentInfo, added bool, err error)
	List(ctx context.Context) []ContentStatus
	Resolve(ctx context.Context, contentID string) (domain.ContentInfo, error)
	Pause(ctx context.Context, contentID string) error
	Resume(ctx context.Context, contentID string) error
	Delete(ctx context.Context, contentID string, deleteFiles bool) error
}

// ContentStatus is the transfer-level view of a content item, as served to
// the API.
type ContentStatus struct {
	domain.ContentInfo
	State         domain.ContentState `json:"state"`
	Progress      int                 `json:"progress"`
	DownloadSpeed int64               `json:"download_speed"`
	UploadedBytes int64               `json:"uploaded_bytes"`
}

type Config struct {
	DownloadRoot   string
	StatusInterval time.Duration
	TrackerList    []string
	Logger         *logrus.Logger
}

type manager struct {
	cfg    Config
	client *torrent.Client
	events Events
	guard  Guard

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	active map[string]*contentHandle
}

type contentHandle struct {
	torrent   *torrent.Torrent
	cancel    context.CancelFunc
	paused    bool
	completed bool
}

func NewManager(cfg Config, events Events, guard Guard) Manager {
	if cfg.StatusInterval == 0 {
		cfg.StatusInterval = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if len(cfg.TrackerList) == 0 {
		cfg.TrackerList = defaultTrackers()
	}
	return &manager{
		cfg:    cfg,
		events: events,
		guard:  guard,
		active: make(map[string]*contentHandle),
	}
}

func (m *manager) Start(ctx context.Context) error {
	if err := os.MkdirAll(m.cfg.DownloadRoot, 0o755); err != nil {
		return fmt.Errorf("create download root: %w", err)
	}

	clientConfig := torrent.NewDefaultClientConfig()
	clientConfig.DataDir = m.cfg.DownloadRoot
	clientConfig.NoUpload = false
	clientConfig.Seed = true

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		return fmt.Errorf("create torrent client: %w", err)
	}

	m.client = client
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.cfg.Logger.Infof("content manager started, data dir: %s", m.cfg.DownloadRoot)
	return nil
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	if m.client != nil {
		m.client.Close()
	}
	m.cfg.Logger.Info("content manager stopped")
}

func (m *manager) AddMagnet(ctx context.Context, uri string) (domain.ContentInfo, bool, error) {
	t, err := m.client.AddMagnet(uri)
	if err != nil {
		return domain.ContentInfo{}, false, fmt.Errorf("add magnet: %w", err)
	}
	info, added := m.adopt(t)
	return info, added, nil
}

func (m *manager) AddTorrentFile(ctx context.Context, path string) (domain.ContentInfo, bool, error) {
	t, err := m.client.AddTorrentFromFile(path)
	if err != nil {
		return domain.ContentInfo{}, false, fmt.Errorf("add torrent file: %w", err)
	}
	info, added := m.adopt(t)
	return info, added, nil
}

// adopt registers a torrent with the manager and spawns its watch goroutine.
// Re-adding a known torrent returns the existing view with added=false and
// does not emit a second added event.
func (m *manager) adopt(t *torrent.Torrent) (domain.ContentInfo, bool) {
	id := t.InfoHash().HexString()

	m.mu.Lock()
	if _, ok := m.active[id]; ok {
		m.mu.Unlock()
		return m.snapshot(id, t), false
	}
	watchCtx, cancel := context.WithCancel(m.ctx)
	m.active[id] = &contentHandle{torrent: t, cancel: cancel}
	m.mu.Unlock()

	for _, tracker := range m.cfg.TrackerList {
		t.AddTrackers([][]string{{tracker}})
	}

	info := m.snapshot(id, t)
	m.events.HandleContentAdded(domain.ContentAdded{
		ID:        id,
		Name:      info.Name,
		InfoHash:  id,
		FileCount: info.FileCount,
	})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.watch(watchCtx, id, t)
	}()
	return info, true
}

// watch drives one torrent from metadata to completion and keeps reporting
// progress while it seeds, so ratio triggers see upload totals.
func (m *manager) watch(ctx context.Context, id string, t *torrent.Torrent) {
	logger := m.cfg.Logger.WithField("content_id", id)

	select {
	case <-ctx.Done():
		return
	case <-t.GotInfo():
	}

	info := t.Info()
	if info == nil {
		logger.Error("torrent reported info ready but info is missing")
		return
	}
	m.events.HandleContentMetadata(domain.ContentMetadata{ID: id, Name: info.BestName()})

	t.DownloadAll()

	ticker := time.NewTicker(m.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(id, t, logger)
		}
	}
}

func (m *manager) tick(id string, t *torrent.Torrent, logger *logrus.Entry) {
	m.mu.Lock()
	handle, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	paused := handle.paused
	alreadyComplete := handle.completed
	complete := t.Info() != nil && t.BytesMissing() == 0
	if complete {
		handle.completed = true
	}
	m.mu.Unlock()

	state := domain.ContentStateDownloading
	switch {
	case paused:
		state = domain.ContentStatePaused
	case complete:
		state = domain.ContentStateCompleted
	}

	total := int64(0)
	if info := t.Info(); info != nil {
		total = info.TotalLength()
	}
	stats := t.Stats()
	uploaded := stats.BytesWrittenData.Int64()

	m.events.HandleContentProgress(domain.ContentProgress{
		ID:            id,
		State:         state,
		TotalBytes:    total,
		UploadedBytes: uploaded,
	})

	if complete && !alreadyComplete {
		logger.Info("download completed")
		m.events.HandleContentCompleted(domain.ContentCompleted{ID: id})
	}
}

func (m *manager) List(ctx context.Context) []ContentStatus {
	m.mu.Lock()
	handles := make(map[string]*contentHandle, len(m.active))
	for id, h := range m.active {
		handles[id] = h
	}
	m.mu.Unlock()

	statuses := make([]ContentStatus, 0, len(handles))
	for id, handle := range handles {
		t := handle.torrent
		info := m.snapshot(id, t)
		stats := t.Stats()
		status := ContentStatus{
			ContentInfo:   info,
			State:         domain.ContentStateInitializing,
			UploadedBytes: stats.BytesWrittenData.Int64(),
		}
		if t.Info() != nil {
			if info.TotalSize > 0 {
				status.Progress = int(t.BytesCompleted() * 100 / info.TotalSize)
			}
			switch {
			case handle.paused:
				status.State = domain.ContentStatePaused
			case info.Complete:
				status.State = domain.ContentStateCompleted
			default:
				status.State = domain.ContentStateDownloading
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (m *manager) Resolve(ctx context.Context, contentID string) (domain.ContentInfo, error) {
	m.mu.Lock()
	handle, ok := m.active[contentID]
	m.mu.Unlock()
	if !ok {
		return domain.ContentInfo{}, fmt.Errorf("content %s not found", contentID)
	}
	return m.snapshot(contentID, handle.torrent), nil
}

func (m *manager) snapshot(id string, t *torrent.Torrent) domain.ContentInfo {
	info := domain.ContentInfo{ID: id, Name: t.Name()}
	meta := t.Info()
	if meta == nil {
		return info
	}
	info.Name = meta.BestName()
	info.TotalSize = meta.TotalLength()
	info.Complete = t.BytesMissing() == 0

	files := t.Files()
	info.FileCount = len(files)
	info.Files = make([]domain.FileInfo, len(files))
	for i, f := range files {
		info.Files[i] = domain.FileInfo{
			Index: i,
			Name:  f.DisplayPath(),
			Path:  filepath.Join(m.cfg.DownloadRoot, filepath.FromSlash(f.Path())),
			Size:  f.Length(),
		}
	}
	return info
}

func (m *manager) Pause(ctx context.Context, contentID string) error {
	return m.guard.Do("pause", contentID, func() error {
		m.mu.Lock()
		handle, ok := m.active[contentID]
		if ok {
			handle.paused = true
		}
		m.mu.Unlock()
		if !ok {
			return fmt.Errorf("content %s not found", contentID)
		}
		handle.torrent.DisallowDataDownload()
		handle.torrent.DisallowDataUpload()
		return nil
	})
}

func (m *manager) Resume(ctx context.Context, contentID string) error {
	return m.guard.Do("resume", contentID, func() error {
		m.mu.Lock()
		handle, ok := m.active[contentID]
		if ok {
			handle.paused = false
		}
		m.mu.Unlock()
		if !ok {
			return fmt.Errorf("content %s not found", contentID)
		}
		handle.torrent.AllowDataDownload()
		handle.torrent.AllowDataUpload()
		return nil
	})
}

func (m *manager) Delete(ctx context.Context, contentID string, deleteFiles bool) error {
	return m.guard.Do("delete", contentID, func() error {
		m.mu.Lock()
		handle, ok := m.active[contentID]
		if ok {
			delete(m.active, contentID)
		}
		m.mu.Unlock()
		if !ok {
			return fmt.Errorf("content %s not found", contentID)
		}

		handle.cancel()
		paths := make([]string, 0)
		if deleteFiles {
			for _, f := range m.snapshot(contentID, handle.torrent).Files {
				paths = append(paths, f.Path)
			}
		}
		handle.torrent.Drop()

		for _, p := range paths {
			if err := os.RemoveAll(p); err != nil && !os.IsNotExist(err) {
				m.cfg.Logger.WithField("content_id", contentID).Warnf("remove file: %v", err)
			}
		}
		return nil
	})
}

func defaultTrackers() []string {
	return []string{
		"udp://tracker.opentrackr.org:1337/announce",
		"udp://tracker.openbittorrent.com:6969/announce",
		"udp://open.stealth.si:80/announce",
		"udp://exodus.desync.com:6969/announce",
		"http://tracker.opentrackr.org:1337/announce",
		"http://tracker.openbittorrent.com:80/announce",
		"udp://tracker.torrent.eu.org:451/announce",
		"udp://tracker.moeking.me:6969/announce",
	}
}

var _ Manager = (*manager)(nil)
