package migration

import (
	"fmt"
	"sort"
)

// PayloadVersion is written by Split.
const PayloadVersion = 1

// ValidateBatch checks the batch fields of p. The codec accepts any values;
// this is for callers that need a consistent export.
func ValidateBatch(p MigrationPayload) error {
	switch {
	case p.BatchSize < 0:
		return &BatchError{BatchSize: p.BatchSize, BatchIndex: p.BatchIndex, Reason: "negative batch size"}
	case p.BatchIndex < 0:
		return &BatchError{BatchSize: p.BatchSize, BatchIndex: p.BatchIndex, Reason: "negative batch index"}
	case p.BatchSize > 0 && p.BatchIndex >= p.BatchSize:
		return &BatchError{BatchSize: p.BatchSize, BatchIndex: p.BatchIndex, Reason: "index out of range"}
	}
	return nil
}

// Split groups params into consecutive payloads of at most perBatch entries.
// perBatch <= 0 puts everything in one payload. An empty params still
// yields one empty payload.
func Split(params []OtpParameters, perBatch int, batchID int32) []MigrationPayload {
	if perBatch <= 0 || perBatch > len(params) {
		perBatch = len(params)
	}
	count := 1
	if perBatch > 0 {
		count = (len(params) + perBatch - 1) / perBatch
	}
	out := make([]MigrationPayload, 0, count)
	for i := 0; i < count; i++ {
		var chunk []OtpParameters
		if perBatch > 0 {
			end := min((i+1)*perBatch, len(params))
			chunk = params[i*perBatch : end]
		}
		out = append(out, MigrationPayload{
			OtpParameters: append([]OtpParameters(nil), chunk...),
			Version:       PayloadVersion,
			BatchSize:     int32(count),
			BatchIndex:    int32(i),
			BatchID:       batchID,
		})
	}
	return out
}

// Merge reassembles the entries of a split export. Batches may arrive in
// any order but must share a batch id and size and cover every index once.
// Payloads without batch information (size 0) are accepted one at a time.
func Merge(batches []MigrationPayload) ([]OtpParameters, error) {
	if len(batches) == 0 {
		return nil, nil
	}
	for _, b := range batches {
		if err := ValidateBatch(b); err != nil {
			return nil, err
		}
	}
	first := batches[0]
	if first.BatchSize == 0 {
		if len(batches) != 1 {
			return nil, fmt.Errorf("migration: %d payloads without batch information", len(batches))
		}
		return append([]OtpParameters(nil), first.OtpParameters...), nil
	}
	if int(first.BatchSize) != len(batches) {
		return nil, &BatchError{BatchSize: first.BatchSize, Reason: fmt.Sprintf("have %d batches", len(batches))}
	}

	ordered := append([]MigrationPayload(nil), batches...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].BatchIndex < ordered[j].BatchIndex
	})
	var out []OtpParameters
	for i, b := range ordered {
		if b.BatchID != first.BatchID {
			return nil, fmt.Errorf("migration: batch id mismatch: %d != %d", b.BatchID, first.BatchID)
		}
		if b.BatchSize != first.BatchSize {
			return nil, &BatchError{BatchSize: b.BatchSize, BatchIndex: b.BatchIndex, Reason: "batch size mismatch"}
		}
		if int(b.BatchIndex) != i {
			return nil, &BatchError{BatchSize: b.BatchSize, BatchIndex: int32(i), Reason: "missing or duplicate batch"}
		}
		out = append(out, b.OtpParameters...)
	}
	return out, nil
}
