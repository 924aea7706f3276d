package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/tiercache/pkg/config/xconf"
	"github.com/omeyang/tiercache/pkg/storage/xdisk"
)

// usageError 表示参数错误，退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createStatsCommand(),
		createSweepCommand(),
		createClearCommand(),
		createCheckcfgCommand(),
	}
}

// rootFlag 是操作磁盘缓存目录的公共 flag。
func rootFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "root",
		Aliases: []string{"r"},
		Usage:   "磁盘缓存根目录",
	}
}

// openDisk 按 --root 打开磁盘层。校验放在 xdisk.New 中统一处理。
func openDisk(cmd *cli.Command) (*xdisk.Tier, error) {
	root := cmd.String("root")
	if root == "" {
		return nil, &usageError{msg: "缺少 --root 参数"}
	}
	return xdisk.New(root)
}

func createStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "查看磁盘缓存占用统计",
		Flags: []cli.Flag{rootFlag()},
		Action: func(_ context.Context, cmd *cli.Command) error {
			disk, err := openDisk(cmd)
			if err != nil {
				return err
			}
			stats, err := disk.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("root:  %s\n", disk.Root())
			fmt.Printf("files: %d\n", stats.Files)
			fmt.Printf("bytes: %s (%d)\n", humanize.IBytes(uint64(max(stats.Bytes, 0))), stats.Bytes)
			return nil
		},
	}
}

func createSweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "清除磁盘缓存中的过期条目",
		Flags: []cli.Flag{rootFlag()},
		Action: func(_ context.Context, cmd *cli.Command) error {
			disk, err := openDisk(cmd)
			if err != nil {
				return err
			}
			removed, err := disk.Sweep(time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("removed %d expired entries\n", removed)
			return nil
		},
	}
}

func createClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "清空磁盘缓存（可按 namespace 过滤）",
		Flags: []cli.Flag{
			rootFlag(),
			&cli.StringFlag{
				Name:    "namespace",
				Aliases: []string{"n"},
				Usage:   "仅清空指定逻辑分区；缺省清空全部",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			disk, err := openDisk(cmd)
			if err != nil {
				return err
			}
			removed, err := disk.Clear(cmd.String("namespace"))
			if err != nil {
				return err
			}
			fmt.Printf("removed %d entries\n", removed)
			return nil
		},
	}
}

func createCheckcfgCommand() *cli.Command {
	return &cli.Command{
		Name:      "checkcfg",
		Usage:     "校验配置文件",
		ArgsUsage: "<file>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return &usageError{msg: "缺少配置文件路径"}
			}
			loaded, err := xconf.Load(path)
			if err != nil {
				return err
			}
			cfg, err := loaded.Parse()
			if err != nil {
				return err
			}
			fmt.Printf("ok: budget=%dMB policy=%s disk=%v workers=%d\n",
				cfg.Cache.MemoryBudgetMB, cfg.Cache.EvictionPolicy,
				cfg.Cache.DiskEnabled, cfg.Pipeline.MaxWorkers)
			return nil
		},
	}
}
