package artifact

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WaitFor 在宽限期内等待该种类的新导出文件出现（mtime 不早于 since）。
// 以 fsnotify 监听工作目录为主，辅以周期轮询兜底：
// 终端的保存对话框可能落到候选目录而非被监听的工作目录。
func (h *Harvester) WaitFor(kind Kind, since time.Time, grace time.Duration) (*Artifact, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("artifact: 未知导出种类 %q", kind)
	}

	if art := h.freshArtifact(kind, since); art != nil {
		return art, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		h.logger.Warn("创建文件监听失败，退化为纯轮询", zap.Error(err))
	} else {
		defer watcher.Close()
		if addErr := watcher.Add(h.workDir); addErr != nil {
			h.logger.Warn("监听工作目录失败", zap.String("dir", h.workDir), zap.Error(addErr))
		}
	}

	deadline := time.NewTimer(grace)
	defer deadline.Stop()
	poll := time.NewTicker(500 * time.Millisecond)
	defer poll.Stop()

	var events chan fsnotify.Event
	if watcher != nil {
		events = watcher.Events
	}

	for {
		select {
		case <-deadline.C:
			return nil, ErrMissing
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !strings.Contains(ev.Name, kind.Label()) {
				continue
			}
			if art := h.freshArtifact(kind, since); art != nil {
				return art, nil
			}
		case <-poll.C:
			if art := h.freshArtifact(kind, since); art != nil {
				return art, nil
			}
		}
	}
}

// freshArtifact 返回 mtime 不早于 since 的最新文件，否则 nil。
func (h *Harvester) freshArtifact(kind Kind, since time.Time) *Artifact {
	art, err := h.Latest(kind)
	if err != nil {
		return nil
	}
	if art.ModTime.Before(since) {
		return nil
	}
	return art
}
