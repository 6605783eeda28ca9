package config

import (
	"fmt"
	"slices"
)

// derivedPass is one step of derived-field resolution. Passes run in
// declared dependency order after an aggregate validates and before it
// finalizes; the order is explicit rather than incidental.
type derivedPass struct {
	name  string
	apply func() error
}

// Attention page sizes for the paged backend classes. Dense backends attend
// over the whole sequence, so their page size defaults to max_seq_len.
const (
	torchPagedAttentionPageSize      = 32
	autoDeployPagedAttentionPageSize = 64
)

// resolveAttentionPageSize fills an unset page size from the backend class.
// An explicit caller-supplied value always wins. paged reports whether the
// selected backend uses paged attention; pagedDefault is that class's fixed
// page size.
func resolveAttentionPageSize(pageSize *int, paged bool, pagedDefault, maxSeqLen int) error {
	if *pageSize != 0 {
		return nil
	}
	if paged {
		*pageSize = pagedDefault
		return nil
	}
	if maxSeqLen <= 0 {
		return &CrossFieldConsistencyError{
			Fields: []string{"attn_page_size", "max_seq_len"},
			Reason: "a dense attention backend needs max_seq_len to derive the page size",
		}
	}
	*pageSize = maxSeqLen
	return nil
}

// resolveCudaGraphBuckets reconciles the bucket list with the maximum batch
// size. When both are supplied they must agree for the padding mode; when
// only one is supplied the other is derived from it.
func resolveCudaGraphBuckets(cfg *CudaGraphConfig) error {
	if cfg == nil {
		return nil
	}
	switch {
	case len(cfg.BatchSizes) > 0 && cfg.MaxBatchSize > 0:
		expected := GenerateCudaGraphBatchSizes(cfg.MaxBatchSize, cfg.EnablePadding)
		given := normalizedBatchSizes(cfg.BatchSizes)
		if !slices.Equal(given, expected) {
			return &CrossFieldConsistencyError{
				Fields: []string{"cuda_graph_config.batch_sizes", "cuda_graph_config.max_batch_size"},
				Reason: fmt.Sprintf(
					"explicit batch sizes %v do not match the list generated for max_batch_size=%d (%v)",
					cfg.BatchSizes, cfg.MaxBatchSize, expected,
				),
			}
		}
		cfg.BatchSizes = given
	case len(cfg.BatchSizes) > 0:
		cfg.BatchSizes = normalizedBatchSizes(cfg.BatchSizes)
		cfg.MaxBatchSize = cfg.BatchSizes[len(cfg.BatchSizes)-1]
	case cfg.MaxBatchSize > 0:
		cfg.BatchSizes = GenerateCudaGraphBatchSizes(cfg.MaxBatchSize, cfg.EnablePadding)
	}
	return nil
}
