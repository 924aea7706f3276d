package xdisk

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/google/uuid"
)

// 默认文件系统权限，符合 gosec G301/G306 建议。
const (
	defaultDirPerm  = 0750
	defaultFilePerm = 0600
)

// cacheExt 是缓存文件的扩展名。
const cacheExt = ".cache"

// Entry 表示一条磁盘缓存条目。
type Entry struct {
	// Value 条目值（不透明字节）。
	Value []byte

	// Namespace 条目所属的逻辑分区。
	Namespace string

	// CreatedAt 条目创建时间。
	CreatedAt time.Time

	// ExpiresAt 条目过期时间，必须晚于 CreatedAt。
	ExpiresAt time.Time

	// Size 条目占用的估算字节数，必须非负。
	Size int64
}

// Stats 表示磁盘层的占用统计。
type Stats struct {
	// Files 缓存文件数量。
	Files int64

	// Bytes 缓存文件占用的总字节数（文件系统视角）。
	Bytes int64
}

// Tier 是基于文件系统的磁盘缓存层。
// 必须通过 [New] 创建。所有方法并发安全：单个键的文件操作基于原子 rename，
// 不依赖进程内锁。
type Tier struct {
	root     string
	compress bool
	validate bool
	logger   *slog.Logger
	now      func() time.Time

	renameAttempts uint
	renameDelay    time.Duration
}

// Option 定义 Tier 的可选配置函数类型。
type Option func(*Tier)

// WithCompression 启用/禁用 s2 压缩。默认启用。
func WithCompression(enabled bool) Option {
	return func(t *Tier) {
		t.compress = enabled
	}
}

// WithIntegrityValidation 启用/禁用损坏自愈（解码失败时删除文件）。默认启用。
// 关闭后损坏文件会被保留（仍然返回未命中），便于排障时保留现场。
func WithIntegrityValidation(enabled bool) Option {
	return func(t *Tier) {
		t.validate = enabled
	}
}

// WithLogger 设置日志器。默认使用 slog.Default()。
func WithLogger(l *slog.Logger) Option {
	return func(t *Tier) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock 注入时钟函数，用于测试。默认 time.Now。
func WithClock(now func() time.Time) Option {
	return func(t *Tier) {
		if now != nil {
			t.now = now
		}
	}
}

// New 创建磁盘缓存层，root 目录不存在时自动创建。
func New(root string, opts ...Option) (*Tier, error) {
	if root == "" {
		return nil, ErrEmptyRoot
	}

	t := &Tier{
		root:           root,
		compress:       true,
		validate:       true,
		logger:         slog.Default(),
		now:            time.Now,
		renameAttempts: 3,
		renameDelay:    10 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	if err := os.MkdirAll(root, defaultDirPerm); err != nil {
		return nil, fmt.Errorf("xdisk: create root %s: %w", root, err)
	}
	return t, nil
}

// Root 返回缓存根目录。
func (t *Tier) Root() string {
	return t.root
}

// PathFor 返回键对应的文件路径 {root}/{key[:2]}/{key}.cache，
// 并确保分片子目录存在。
func (t *Tier) PathFor(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	shard := filepath.Join(t.root, key[:2])
	if err := os.MkdirAll(shard, defaultDirPerm); err != nil {
		return "", fmt.Errorf("xdisk: create shard dir %s: %w", shard, err)
	}
	return filepath.Join(shard, key+cacheExt), nil
}

// Get 读取条目。
// 文件不存在、已过期（就地删除）、或解码失败（按配置自愈删除）均返回未命中。
// 损坏永远不会以错误形式抛给调用方。
func (t *Tier) Get(key string) (Entry, bool) {
	if validateKey(key) != nil {
		return Entry{}, false
	}

	path := filepath.Join(t.root, key[:2], key+cacheExt)
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, false
	}

	r, err := decodeRecord(data)
	if err != nil {
		t.selfHeal(path, err)
		return Entry{}, false
	}

	if r.ExpiresAt <= t.now().Unix() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			t.logger.Warn("xdisk: remove expired entry failed",
				slog.String("path", path), slog.Any("error", err))
		}
		return Entry{}, false
	}

	return Entry{
		Value:     r.Value,
		Namespace: r.Namespace,
		CreatedAt: time.Unix(r.CreatedAt, 0),
		ExpiresAt: time.Unix(r.ExpiresAt, 0),
		Size:      r.Size,
	}, true
}

// Exists 报告键是否存在且未过期。与 Get 一样对损坏文件自愈。
func (t *Tier) Exists(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// Put 写入条目：序列化为带版本记录后原子写入（临时文件 + rename）。
// 同一键的并发写者遵循 last-write-wins。
func (t *Tier) Put(key string, e Entry) error {
	if e.Size < 0 || !e.ExpiresAt.After(e.CreatedAt) {
		return ErrInvalidEntry
	}

	path, err := t.PathFor(key)
	if err != nil {
		return err
	}

	data, err := encodeRecord(&record{
		Version:   recordVersion,
		Key:       key,
		Namespace: e.Namespace,
		Value:     e.Value,
		ExpiresAt: e.ExpiresAt.Unix(),
		CreatedAt: e.CreatedAt.Unix(),
		Size:      e.Size,
	}, t.compress)
	if err != nil {
		return err
	}

	// 临时文件必须与目标同目录，跨文件系统的 rename 不保证原子性
	tmp := path + ".tmp." + uuid.NewString()
	if err := os.WriteFile(tmp, data, defaultFilePerm); err != nil {
		return fmt.Errorf("xdisk: write temp file: %w", err)
	}

	// rename 在 Windows 上可能因目标被并发读者打开而短暂失败，固定间隔重试
	err = retry.New(
		retry.Attempts(t.renameAttempts),
		retry.Delay(t.renameDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	).Do(func() error {
		return os.Rename(tmp, path)
	})
	if err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			t.logger.Warn("xdisk: remove orphan temp file failed",
				slog.String("path", tmp), slog.Any("error", rmErr))
		}
		return fmt.Errorf("xdisk: rename %s: %w", path, err)
	}
	return nil
}

// Remove 删除条目。返回键对应的文件是否存在。
func (t *Tier) Remove(key string) bool {
	if validateKey(key) != nil {
		return false
	}
	path := filepath.Join(t.root, key[:2], key+cacheExt)
	err := os.Remove(path)
	return err == nil
}

// Sweep 遍历所有条目，删除在 now 时刻已过期的文件。返回删除数量。
func (t *Tier) Sweep(now time.Time) (int, error) {
	removed := 0
	err := t.walk(func(path string) {
		data, err := os.ReadFile(path)
		if err != nil {
			return
		}
		r, err := decodeRecord(data)
		if err != nil {
			t.selfHeal(path, err)
			return
		}
		if r.ExpiresAt <= now.Unix() {
			if os.Remove(path) == nil {
				removed++
			}
		}
	})
	return removed, err
}

// Clear 删除指定 namespace 的所有条目；namespace 为空串时清空整层。
// 返回删除数量。
func (t *Tier) Clear(namespace string) (int, error) {
	removed := 0
	err := t.walk(func(path string) {
		if namespace != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return
			}
			r, err := decodeRecord(data)
			if err != nil {
				t.selfHeal(path, err)
				return
			}
			if r.Namespace != namespace {
				return
			}
		}
		if os.Remove(path) == nil {
			removed++
		}
	})
	return removed, err
}

// Stats 返回磁盘层当前的文件数与总字节数。
func (t *Tier) Stats() (Stats, error) {
	var s Stats
	err := filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, cacheExt) {
			// 扫描期间文件可能被并发删除，跳过即可
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		s.Files++
		s.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("xdisk: stats walk: %w", err)
	}
	return s, nil
}

// =============================================================================
// 内部实现
// =============================================================================

// walk 对根目录下的每个缓存文件调用 fn。
func (t *Tier) walk(fn func(path string)) error {
	err := filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// 子目录可能被并发清理，跳过
			return nil //nolint:nilerr // 扫描容忍并发删除
		}
		if d.IsDir() || !strings.HasSuffix(path, cacheExt) {
			return nil
		}
		fn(path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("xdisk: walk %s: %w", t.root, err)
	}
	return nil
}

// selfHeal 处理损坏文件：启用完整性校验时删除，否则仅记录日志。
func (t *Tier) selfHeal(path string, cause error) {
	if !t.validate {
		t.logger.Warn("xdisk: corrupt entry kept (validation disabled)",
			slog.String("path", path), slog.Any("error", cause))
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		t.logger.Warn("xdisk: remove corrupt entry failed",
			slog.String("path", path), slog.Any("error", err))
		return
	}
	t.logger.Debug("xdisk: corrupt entry removed",
		slog.String("path", path), slog.Any("error", cause))
}

// validateKey 校验缓存键：长度不小于 2，且只包含安全字符。
// 键应当来自 xkey 的十六进制摘要；此处防御性拒绝路径分隔符等输入。
func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if len(key) < 2 {
		return fmt.Errorf("%w: too short", ErrInvalidKey)
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		ok := (c >= '0' && c <= '9') ||
			(c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			c == '-' || c == '_'
		if !ok {
			return fmt.Errorf("%w: illegal character %q", ErrInvalidKey, c)
		}
	}
	return nil
}
