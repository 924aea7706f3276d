package xtier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Registry 是显式的命名缓存注册表。
// 进程启动时构造一次并注入各消费方，取代模块级单例；
// Close 时停止后台清理并将各缓存的内存驻留条目批量落盘。
type Registry struct {
	mu     sync.RWMutex
	caches map[string]*Cache
	tasks  []func()
	closed bool

	cron   *cron.Cron
	logger *slog.Logger
}

// RegistryOption 定义 Registry 的可选配置函数类型。
type RegistryOption func(*Registry)

// WithRegistryLogger 设置日志器。默认 slog.Default()。
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry 创建空注册表。
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		caches: make(map[string]*Cache),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register 注册一个缓存实例。名称重复时返回 ErrCacheExists。
func (r *Registry) Register(c *Cache) error {
	if c == nil {
		return ErrCacheNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if _, ok := r.caches[c.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrCacheExists, c.Name())
	}
	r.caches[c.Name()] = c
	return nil
}

// Get 按名称获取缓存实例。
func (r *Registry) Get(name string) (*Cache, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	c, ok := r.caches[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheNotFound, name)
	}
	return c, nil
}

// Names 返回已注册缓存名的有序列表。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.caches))
	for name := range r.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddJanitorTask 注册随清理周期一起执行的附加任务，如保留层的预热循环。
// 任务在每轮过期扫描之后串行执行，必须自行保证快速返回。
func (r *Registry) AddJanitorTask(fn func()) error {
	if fn == nil {
		return errors.New("xtier: nil janitor task")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	r.tasks = append(r.tasks, fn)
	return nil
}

// StartJanitor 启动后台清理任务，按 interval 对所有缓存执行过期扫描。
// 重复启动返回 ErrJanitorRunning。
func (r *Registry) StartJanitor(interval time.Duration) error {
	if interval <= 0 {
		return errors.New("xtier: non-positive janitor interval")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if r.cron != nil {
		return ErrJanitorRunning
	}

	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() { _ = r.SweepAll() })
	if err != nil {
		return fmt.Errorf("xtier: schedule janitor: %w", err)
	}
	c.Start()
	r.cron = c
	return nil
}

// SweepAll 对所有已注册缓存执行一次过期扫描，随后串行执行附加任务。
// 后台清理按周期调用；也可手动触发。
func (r *Registry) SweepAll() error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrRegistryClosed
	}
	caches := make([]*Cache, 0, len(r.caches))
	for _, c := range r.caches {
		caches = append(caches, c)
	}
	tasks := make([]func(), len(r.tasks))
	copy(tasks, r.tasks)
	r.mu.RUnlock()

	for _, c := range caches {
		c.ForceSweep()
	}
	for _, task := range tasks {
		task()
	}
	return nil
}

// Close 关闭注册表：停止后台清理，并将各缓存的内存驻留条目落盘。
// 落盘失败不中断其余缓存，最后汇总返回。重复 Close 返回 ErrRegistryClosed。
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	r.closed = true
	janitor := r.cron
	r.cron = nil
	caches := make([]*Cache, 0, len(r.caches))
	for _, c := range r.caches {
		caches = append(caches, c)
	}
	r.mu.Unlock()

	if janitor != nil {
		<-janitor.Stop().Done() // 等待在途扫描结束
	}

	var errs []error
	for _, c := range caches {
		n, err := c.FlushToDisk(ctx)
		switch {
		case errors.Is(err, ErrDiskDisabled):
			// 纯内存缓存无须落盘
		case err != nil:
			errs = append(errs, fmt.Errorf("flush %s: %w", c.Name(), err))
		default:
			r.logger.Info("xtier: flushed cache to disk",
				slog.String("cache", c.Name()), slog.Int("entries", n))
		}
	}
	return errors.Join(errs...)
}
