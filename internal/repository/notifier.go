package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"filetag-indexer/internal/model"
	"filetag-indexer/internal/utils"
	"filetag-indexer/pkg/logger"
)

// renamePairWindow fsnotify只上报旧路径的RENAME事件，
// 紧随其后的CREATE在该窗口内视为同一次重命名的新路径
const renamePairWindow = 200 * time.Millisecond

// ChangeNotifier 文件系统变更通知源
type ChangeNotifier interface {
	// Events 返回归一化后的文件事件通道
	Events() <-chan model.FileEvent
	// Errors 返回底层监视错误通道
	Errors() <-chan error
	// Close 停止监视并关闭通道
	Close() error
}

// changeNotifier 基于fsnotify的通知源实现
// 将RENAME/CREATE事件对归并为单个renamed事件
type changeNotifier struct {
	watcher    *fsnotify.Watcher
	root       string
	nameFilter string
	recursive  bool
	logger     logger.Logger

	events chan model.FileEvent
	errors chan error

	mu         sync.Mutex
	pendingOld string
	pendingAt  time.Time
	closeOnce  sync.Once
	done       chan struct{}
	flushTimer *time.Timer
}

// NewChangeNotifier 为监视器配置创建通知源
func NewChangeNotifier(watcherCfg *model.Watcher, log logger.Logger) (ChangeNotifier, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	root := filepath.Clean(watcherCfg.Path)
	bufferSize := watcherCfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 64
	}

	n := &changeNotifier{
		watcher:    fsWatcher,
		root:       root,
		nameFilter: watcherCfg.Filter,
		recursive:  watcherCfg.IncludeSub,
		logger:     log,
		events:     make(chan model.FileEvent, bufferSize),
		errors:     make(chan error, 8),
		done:       make(chan struct{}),
	}

	if err := n.addRoot(); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	go n.loop()

	return n, nil
}

// addRoot 注册监视根目录，递归模式下注册全部子目录
func (n *changeNotifier) addRoot() error {
	if err := n.watcher.Add(n.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", n.root, err)
	}
	if !n.recursive {
		return nil
	}

	return filepath.WalkDir(n.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			n.logger.Warn("Skipping unreadable path %s: %v", path, err)
			return nil
		}
		if d.IsDir() && path != n.root {
			if addErr := n.watcher.Add(path); addErr != nil {
				n.logger.Warn("Failed to watch subdirectory %s: %v", path, addErr)
			}
		}
		return nil
	})
}

// Events 返回归一化后的文件事件通道
func (n *changeNotifier) Events() <-chan model.FileEvent {
	return n.events
}

// Errors 返回底层监视错误通道
func (n *changeNotifier) Errors() <-chan error {
	return n.errors
}

// Close 停止监视并关闭通道
func (n *changeNotifier) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.done)
		err = n.watcher.Close()
	})
	return err
}

// loop 消费fsnotify事件并归一化转发
func (n *changeNotifier) loop() {
	defer close(n.events)
	defer close(n.errors)

	for {
		select {
		case <-n.done:
			n.flushPendingRename()
			return
		case ev, ok := <-n.watcher.Events:
			if !ok {
				n.flushPendingRename()
				return
			}
			n.handleEvent(ev)
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			select {
			case n.errors <- err:
			default:
				n.logger.Warn("Notifier error channel full, dropping: %v", err)
			}
		}
	}
}

// handleEvent 将单个fsnotify事件转换为文件事件
func (n *changeNotifier) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	switch {
	case ev.Op.Has(fsnotify.Rename):
		// 旧路径事件，等待配对的CREATE
		n.recordPendingRename(path)
		return
	case ev.Op.Has(fsnotify.Create):
		if old, ok := n.takePendingRename(); ok {
			n.emitRenamed(old, path)
			if n.recursive {
				n.maybeWatchNewDir(path)
			}
			return
		}
		if n.recursive {
			n.maybeWatchNewDir(path)
		}
		n.emit(model.EventTypeCreated, path)
	case ev.Op.Has(fsnotify.Write):
		n.emit(model.EventTypeChanged, path)
	case ev.Op.Has(fsnotify.Remove):
		n.emit(model.EventTypeDeleted, path)
	}
}

// recordPendingRename 记录等待配对的旧路径，超时后降级为删除事件
func (n *changeNotifier) recordPendingRename(oldPath string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pendingOld != "" {
		// 前一个RENAME没有等到CREATE，按删除处理
		n.emitLocked(model.EventTypeDeleted, n.pendingOld)
	}
	n.pendingOld = oldPath
	n.pendingAt = time.Now()

	if n.flushTimer != nil {
		n.flushTimer.Stop()
	}
	n.flushTimer = time.AfterFunc(renamePairWindow, n.flushPendingRename)
}

// takePendingRename 取出窗口内等待配对的旧路径
func (n *changeNotifier) takePendingRename() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pendingOld == "" {
		return "", false
	}
	if time.Since(n.pendingAt) > renamePairWindow {
		old := n.pendingOld
		n.pendingOld = ""
		n.emitLocked(model.EventTypeDeleted, old)
		return "", false
	}

	old := n.pendingOld
	n.pendingOld = ""
	if n.flushTimer != nil {
		n.flushTimer.Stop()
		n.flushTimer = nil
	}
	return old, true
}

// flushPendingRename 将过期未配对的RENAME降级为删除事件
func (n *changeNotifier) flushPendingRename() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pendingOld == "" {
		return
	}
	old := n.pendingOld
	n.pendingOld = ""
	n.emitLocked(model.EventTypeDeleted, old)
}

// maybeWatchNewDir 新建目录在递归模式下纳入监视
func (n *changeNotifier) maybeWatchNewDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := n.watcher.Add(path); err != nil {
		n.logger.Warn("Failed to watch new directory %s: %v", path, err)
	}
}

// matchesFilter 判断文件名是否通过监视器的名称过滤
func (n *changeNotifier) matchesFilter(name string) bool {
	if n.nameFilter == "" || n.nameFilter == "*" || n.nameFilter == "*.*" {
		return true
	}
	matched, err := filepath.Match(n.nameFilter, name)
	if err != nil {
		n.logger.Warn("Invalid name filter %q: %v", n.nameFilter, err)
		return true
	}
	return matched
}

func (n *changeNotifier) emit(eventType string, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emitLocked(eventType, path)
}

func (n *changeNotifier) emitLocked(eventType string, path string) {
	name := filepath.Base(path)
	if eventType != model.EventTypeDeleted && !n.matchesFilter(name) {
		return
	}

	isDir := false
	if info, err := os.Stat(path); err == nil {
		isDir = info.IsDir()
	}

	event := model.FileEvent{
		Type:       eventType,
		Name:       name,
		FullPath:   path,
		IsDir:      isDir,
		OccurredAt: time.Now(),
	}
	n.send(event)
}

func (n *changeNotifier) emitRenamed(oldPath, newPath string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	newName := filepath.Base(newPath)
	oldName := filepath.Base(oldPath)
	if !n.matchesFilter(newName) && !n.matchesFilter(oldName) {
		return
	}

	isDir := false
	if info, err := os.Stat(newPath); err == nil {
		isDir = info.IsDir()
	}

	event := model.FileEvent{
		Type:        model.EventTypeRenamed,
		Name:        newName,
		FullPath:    newPath,
		OldName:     oldName,
		OldFullPath: oldPath,
		IsDir:       isDir,
		OccurredAt:  time.Now(),
	}
	n.send(event)
}

// send 事件通道满时丢弃并告警，避免阻塞fsnotify消费
func (n *changeNotifier) send(event model.FileEvent) {
	select {
	case n.events <- event:
	default:
		n.logger.Warn("Event buffer full for %s, dropping %s event: %s",
			n.root, event.Type, event.FullPath)
	}
}

// InScope 判断路径是否位于监视根目录范围内
func InScope(root, fullPath string, recursive bool) bool {
	root = filepath.Clean(root)
	dir, _ := utils.SplitFullPath(fullPath)
	if recursive {
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return false
		}
		return rel == "." || (!strings.HasPrefix(rel, "..") && rel != "")
	}
	return dir == root
}
