// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package upload

import "fmt"

// Range is one contiguous slice of the content. End is inclusive.
type Range struct {
	Start int64
	End   int64
	Total int64
}

// Length returns the number of bytes in the range.
func (r Range) Length() int64 {
	if r.Total == 0 {
		return 0
	}
	return r.End - r.Start + 1
}

// HeaderValue renders the Content-Range header for the range.
func (r Range) HeaderValue() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// RangePlan splits content into ranges of a fixed size. It holds no state
// beyond its inputs, so the same plan can be walked any number of times.
type RangePlan struct {
	total     int64
	chunkSize int64
}

// Plan builds the range plan for totalLength bytes sent in chunkSize pieces.
// Empty content yields a single zero-length range, "bytes 0-0/0".
func Plan(totalLength, chunkSize int64) (*RangePlan, error) {
	if chunkSize <= 0 {
		return nil, invalidConfig("chunk size must be positive, got %d", chunkSize)
	}
	if totalLength < 0 {
		return nil, invalidConfig("content length must not be negative, got %d", totalLength)
	}
	return &RangePlan{total: totalLength, chunkSize: chunkSize}, nil
}

// Total returns the content length the plan covers.
func (p *RangePlan) Total() int64 { return p.total }

// ChunkSize returns the size of every range but the last.
func (p *RangePlan) ChunkSize() int64 { return p.chunkSize }

// Len returns the number of ranges.
func (p *RangePlan) Len() int {
	if p.total == 0 {
		return 1
	}
	return int((p.total + p.chunkSize - 1) / p.chunkSize)
}

// At returns range i. It panics when i is out of bounds.
func (p *RangePlan) At(i int) Range {
	if i < 0 || i >= p.Len() {
		panic(fmt.Sprintf("upload: range index %d out of bounds [0, %d)", i, p.Len()))
	}
	if p.total == 0 {
		return Range{}
	}
	start := int64(i) * p.chunkSize
	end := min(start+p.chunkSize, p.total) - 1
	return Range{Start: start, End: end, Total: p.total}
}

// Ranges returns every range in order.
func (p *RangePlan) Ranges() []Range {
	ranges := make([]Range, p.Len())
	for i := range ranges {
		ranges[i] = p.At(i)
	}
	return ranges
}
