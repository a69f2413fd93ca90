// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// source.go - Random access content sources for chunked uploads.
//
// A ContentSource only needs to answer two questions: how long is the content,
// and what are the bytes at a given offset. Each range of an upload session is
// read independently through io.NewSectionReader.

package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// ContentSource is content of a fixed, known length that can be read at any offset.
type ContentSource interface {
	io.ReaderAt
	Size() int64
}

// NewBytesSource wraps an in-memory buffer.
func NewBytesSource(data []byte) ContentSource {
	return bytes.NewReader(data)
}

// NewReaderSource wraps a seekable stream. Its size is found by seeking to the
// end; reads are serialized because they move the shared offset.
func NewReaderSource(rs io.ReadSeeker) (ContentSource, error) {
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to determine stream size: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind stream: %w", err)
	}
	return &readerSource{rs: rs, size: size}, nil
}

type readerSource struct {
	mu   sync.Mutex
	rs   io.ReadSeeker
	size int64
}

func (s *readerSource) Size() int64 { return s.size }

func (s *readerSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(s.rs, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

// FileSource is a ContentSource backed by an open file.
type FileSource struct {
	*os.File
	size  int64
	owned bool
}

// NewFileSource wraps an already-open file. The caller keeps ownership of f.
func NewFileSource(f *os.File) (*FileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", f.Name(), err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", f.Name())
	}
	return &FileSource{File: f, size: info.Size()}, nil
}

// OpenFileSource opens path for reading. Close releases the file.
func OpenFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	src, err := NewFileSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	src.owned = true
	return src, nil
}

func (s *FileSource) Size() int64 { return s.size }

// Close closes the file if it was opened by OpenFileSource.
func (s *FileSource) Close() error {
	if !s.owned {
		return nil
	}
	return s.File.Close()
}
