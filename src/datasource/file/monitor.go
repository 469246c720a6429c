// monitor.go
package file

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 同一文件连续写入时合并事件的等待时间
const DefaultDebounce = 500 * time.Millisecond

// FileMonitor 监控数据目录，目标文件写入完成后回调
type FileMonitor struct {
	watchDir string
	targets  map[string]bool
	watcher  *fsnotify.Watcher
	debounce time.Duration
	mu       sync.Mutex
	timer    *time.Timer
}

// NewFileMonitor 监控 dir 下名为 names 的文件；names 为空时监控所有文件
func NewFileMonitor(dir string, names ...string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	targets := make(map[string]bool, len(names))
	for _, n := range names {
		targets[filepath.Base(n)] = true
	}

	return &FileMonitor{
		watchDir: dir,
		targets:  targets,
		watcher:  watcher,
		debounce: DefaultDebounce,
	}, nil
}

// SetDebounce 修改事件合并等待时间
func (m *FileMonitor) SetDebounce(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debounce = d
}

// Watch 阻塞直到 ctx 结束或监控出错。一批连续事件只触发一次 handler，
// 参数为最后一个变化的文件路径
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	defer m.watcher.Close()
	defer m.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if len(m.targets) > 0 && !m.targets[filepath.Base(event.Name)] {
				continue
			}
			m.schedule(event.Name, handler)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) schedule(name string, handler func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, func() { handler(name) })
}

func (m *FileMonitor) stopTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
}
