package xbatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/omeyang/tiercache/pkg/pipeline/xtable"
)

// runBatched 执行操作；行数超过批大小且操作可分批时并行执行。
// 批次为保持行序的连续切片，结果按原批次顺序拼接，
// 任一批失败则整体失败（绝不返回残缺结果）。
func (p *Processor) runBatched(ctx context.Context, op Operation, data *xtable.Table, params Params) (*xtable.Table, error) {
	rows := data.NumRows()
	if !op.Batchable() || rows <= p.batchSize || p.maxWorkers <= 1 {
		return applySafe(ctx, op, data, params)
	}

	numBatches := (rows + p.batchSize - 1) / p.batchSize
	batches := make([]*xtable.Table, numBatches)
	for i := 0; i < numBatches; i++ {
		lo := i * p.batchSize
		hi := min(lo+p.batchSize, rows)
		b, err := data.Slice(lo, hi)
		if err != nil {
			return nil, err
		}
		batches[i] = b
	}

	// 有界工作池：信号量限流，结果按批次下标回填保证顺序。
	results := make([]*xtable.Table, numBatches)
	errs := make([]error, numBatches)
	sem := make(chan struct{}, p.maxWorkers)
	var wg sync.WaitGroup

	for i := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], errs[i] = applySafe(ctx, op, batches[i], params)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", i+1, numBatches, err)
		}
	}
	return xtable.Concat(results...)
}

// applySafe 执行操作并把 panic 恢复为错误，避免带垮工作池。
func applySafe(ctx context.Context, op Operation, data *xtable.Table, params Params) (result *xtable.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %s: %v", ErrPanicInOperation, op.Name(), r)
		}
	}()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	result, err = op.Apply(ctx, data, params)
	if err == nil && result == nil {
		err = fmt.Errorf("%w: %s returned nil table", ErrBadParam, op.Name())
	}
	return result, err
}
