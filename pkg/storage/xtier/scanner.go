package xtier

import (
	"log/slog"
)

// maybeSweep 在距上次扫描超过 checkInterval 时触发一次过期扫描。
// 通过 CAS 保证并发调用下同一窗口只有一个 goroutine 执行扫描；
// force 为 true 时跳过间隔判定。
func (c *Cache) maybeSweep(force bool) {
	now := c.now()
	last := c.lastSweep.Load()
	if !force && now.UnixNano()-last < c.checkInterval.Nanoseconds() {
		return
	}
	if !c.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return // 另一个调用方已接管本轮扫描
	}

	removed := c.mem.Sweep(now)
	if c.disk != nil {
		n, err := c.disk.Sweep(now)
		if err != nil {
			c.metrics.Error()
			c.logger.Warn("xtier: disk sweep failed",
				slog.String("cache", c.name), slog.Any("error", err))
		}
		removed += n
		c.checkDiskBudget()
	}

	if removed > 0 {
		c.logger.Debug("xtier: sweep removed expired entries",
			slog.String("cache", c.name), slog.Int("removed", removed))
	}
}

// checkDiskBudget 在磁盘占用超过配置上限时告警。
// 上限仅用于观测，超限不触发删除。
func (c *Cache) checkDiskBudget() {
	if c.diskMaxBytes <= 0 {
		return
	}
	stats, err := c.disk.Stats()
	if err != nil {
		return // 统计失败时跳过本轮检查
	}
	if stats.Bytes > c.diskMaxBytes {
		c.logger.Warn("xtier: disk usage over limit",
			slog.String("cache", c.name),
			slog.Int64("used_bytes", stats.Bytes),
			slog.Int64("max_bytes", c.diskMaxBytes))
	}
}

// ForceSweep 立即执行一次两层过期扫描，供后台清理任务与 CLI 调用。
func (c *Cache) ForceSweep() {
	c.maybeSweep(true)
}
