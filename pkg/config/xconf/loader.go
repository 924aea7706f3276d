package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// koanfDelim 是 koanf 的层级分隔符。
const koanfDelim = "."

// koanfTag 是反序列化使用的结构体 tag。
const koanfTag = "koanf"

// Loaded 表示一份已加载的配置。
// 并发安全：Reload 与读取可并发调用。
type Loaded struct {
	mu     sync.RWMutex
	k      *koanf.Koanf
	path   string
	format Format
}

// Load 从文件加载配置，按扩展名自动检测格式。
func Load(path string) (*Loaded, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	k := koanf.New(koanfDelim)
	if err := loadData(k, data, format); err != nil {
		return nil, err
	}

	return &Loaded{k: k, path: path, format: format}, nil
}

// LoadBytes 从字节数据加载配置，需要显式指定格式。
// 空数据创建一个空配置实例（Parse 返回 Defaults）。
func LoadBytes(data []byte, format Format) (*Loaded, error) {
	if !isValidFormat(format) {
		return nil, ErrUnsupportedFormat
	}

	k := koanf.New(koanfDelim)
	if len(data) > 0 {
		if err := loadData(k, data, format); err != nil {
			return nil, err
		}
	}
	return &Loaded{k: k, format: format}, nil
}

// Client 返回底层的 koanf 实例，用于读取 Config 未覆盖的扩展字段。
func (l *Loaded) Client() *koanf.Koanf {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.k
}

// Parse 在默认值之上反序列化配置并校验。
// 文件中未出现的字段保持 [Defaults] 的取值。
func (l *Loaded) Parse() (Config, error) {
	cfg := Defaults()

	l.mu.RLock()
	err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: koanfTag})
	l.mu.RUnlock()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustParse 与 Parse 相同，但失败时 panic。适用于进程启动阶段。
func (l *Loaded) MustParse() Config {
	cfg, err := l.Parse()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Reload 重新读取配置文件。
// 从字节数据创建的配置不支持重载，返回 ErrNotWatchable。
func (l *Loaded) Reload() error {
	if l.path == "" {
		return ErrNotWatchable
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	newK := koanf.New(koanfDelim)
	if err := loadData(newK, data, l.format); err != nil {
		return err
	}

	l.mu.Lock()
	l.k = newK
	l.mu.Unlock()
	return nil
}

// Path 返回配置文件路径。从字节数据创建的配置返回空字符串。
func (l *Loaded) Path() string {
	return l.path
}

// Format 返回配置格式。
func (l *Loaded) Format() Format {
	return l.format
}

// =============================================================================
// 内部辅助函数
// =============================================================================

// detectFormat 根据文件扩展名检测配置格式。
func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}

// isValidFormat 检查格式是否有效。
func isValidFormat(format Format) bool {
	switch format {
	case FormatYAML, FormatJSON:
		return true
	default:
		return false
	}
}

// loadData 加载数据到 koanf 实例。
func loadData(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return ErrUnsupportedFormat
	}

	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}
