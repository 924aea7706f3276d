package xconf

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchCallback 是配置变更回调。
// 重载并解析成功时 err 为 nil 且 cfg 为新配置；失败时 err 非 nil，
// 此时应继续使用旧配置（回调方自行决策）。
type WatchCallback func(cfg Config, err error)

// Watcher 监视配置文件变更并自动重载。
// 事件在监视 goroutine 内防抖合并：窗口内的连续写入只触发一次重载。
type Watcher struct {
	loaded   *Loaded
	fsw      *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// WatchOption 定义监视器的可选配置函数类型。
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
}

// WithDebounce 设置防抖时间：窗口内的多次变更只触发一次重载。
// 默认 100ms。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// Watch 创建配置文件监视器。
// 只支持从文件加载的配置（[Load]）；从字节数据加载的返回 ErrNotWatchable。
// 返回的 Watcher 需调用 StartAsync 开始监视，Stop 停止。
func Watch(loaded *Loaded, callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	if loaded == nil || loaded.path == "" {
		return nil, ErrNotWatchable
	}

	o := &watchOptions{debounce: 100 * time.Millisecond}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: create watcher: %w", err)
	}

	// 监视文件所在目录而非文件本身：
	// 编辑器与原子写入（写临时文件后 rename）会让文件 inode 变化，
	// 直接监视文件会丢失后续事件
	dir := filepath.Dir(loaded.path)
	if err := fsw.Add(dir); err != nil {
		return nil, errors.Join(fmt.Errorf("xconf: watch directory %s: %w", dir, err), fsw.Close())
	}

	return &Watcher{
		loaded:   loaded,
		fsw:      fsw,
		callback: callback,
		debounce: o.debounce,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// StartAsync 在后台 goroutine 中开始监视，立即返回。幂等。
func (w *Watcher) StartAsync() {
	w.startOnce.Do(func() {
		go w.loop()
	})
}

// Stop 停止监视、等待监视 goroutine 退出并释放资源。幂等。
// 未启动过的监视器也可安全 Stop。
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.quit)
		err = w.fsw.Close()
		w.StartAsync() // 保证 done 总会被关闭
		<-w.done
	})
	return err
}

// loop 是监视主循环。事件先记入待定标志，防抖窗口到期后统一重载，
// 这样回调永远在本 goroutine 内触发，Stop 之后不会再有回调。
func (w *Watcher) loop() {
	defer close(w.done)

	target := filepath.Base(w.loaded.path)

	// 初始即停止的防抖定时器，首个事件到达时才真正计时
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-w.quit:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target || !isChange(ev) {
				continue
			}
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true

		case <-timer.C:
			pending = false
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.notify(Config{}, fmt.Errorf("xconf: watch error: %w", err))
		}
	}
}

// isChange 报告事件是否表示配置内容更新。
// Write: 直接修改；Create/Rename: 编辑器的原子写入模式。
func isChange(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

// reload 重载并解析配置，然后通知回调。
func (w *Watcher) reload() {
	if err := w.loaded.Reload(); err != nil {
		w.notify(Config{}, err)
		return
	}
	cfg, err := w.loaded.Parse()
	w.notify(cfg, err)
}

func (w *Watcher) notify(cfg Config, err error) {
	if w.callback != nil {
		w.callback(cfg, err)
	}
}
