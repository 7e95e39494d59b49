// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fqio provides byte-exact framing of four-line FASTQ records.
//
// Unlike the biogo fastq reader, which decodes records into sequences, a
// Scanner keeps the verbatim bytes of every record together with its offset
// in the stream so that records can be copied into chunk files unchanged.
package fqio

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// InputFormatError is returned when a record boundary cannot be located
// in the input.
type InputFormatError struct {
	Name   string // Name of the input.
	Record int64  // 1-based record number.
	Line   int64  // 1-based line number.
	Reason string
}

func (e *InputFormatError) Error() string {
	name := e.Name
	if name == "" {
		name = "<input>"
	}
	return fmt.Sprintf("fqio: %s:%d: record %d: %s", name, e.Line, e.Record, e.Reason)
}

// Record is a single FASTQ record. Header, Seq, Sep and Qual hold the
// four lines without their line endings; Raw holds the verbatim bytes
// of all four lines including line endings.
type Record struct {
	Header []byte
	Seq    []byte
	Sep    []byte
	Qual   []byte

	Raw []byte

	// Offset is the byte offset of the record in the stream.
	Offset int64
	// Number is the 1-based record number.
	Number int64
}

// ID returns the identifier of the record, the header without the
// leading '@' and up to the first white space.
func (r *Record) ID() []byte {
	if len(r.Header) < 1 {
		return nil
	}
	id := r.Header[1:]
	if i := bytes.IndexAny(id, " \t"); i >= 0 {
		id = id[:i]
	}
	return id
}

// Len returns the length of the sequence.
func (r *Record) Len() int { return len(r.Seq) }

// Scanner reads consecutive FASTQ records from an io.Reader.
type Scanner struct {
	r    *bufio.Reader
	name string

	rec    *Record
	offset int64
	line   int64
	number int64

	err error
}

// NewScanner returns a Scanner reading from r. The name is used in
// error messages.
func NewScanner(r io.Reader, name string) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 1<<16), name: name}
}

// Next advances the Scanner to the next record, which is then available
// through the Record method. It returns false when the scan stops, either
// by reaching the end of the input or an error.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	rec := &Record{Offset: s.offset, Number: s.number + 1}
	var lines [4][]byte
	for i := range lines {
		l, err := s.r.ReadBytes('\n')
		if len(l) != 0 {
			s.line++
			rec.Raw = append(rec.Raw, l...)
			lines[i] = trimEOL(l)
		}
		if err == nil {
			continue
		}
		if err != io.EOF {
			s.err = err
			return false
		}
		switch {
		case i == 0 && len(l) == 0:
			s.err = io.EOF
			return false
		case i < 3 || len(l) == 0:
			s.err = s.formatError(rec.Number, "truncated record")
			return false
		}
	}
	rec.Header, rec.Seq, rec.Sep, rec.Qual = lines[0], lines[1], lines[2], lines[3]

	switch {
	case len(rec.Header) == 0 || rec.Header[0] != '@':
		s.err = s.formatErrorAt(rec.Number, s.line-3, "header line does not start with '@'")
		return false
	case len(rec.Sep) == 0 || rec.Sep[0] != '+':
		s.err = s.formatErrorAt(rec.Number, s.line-1, "separator line does not start with '+'")
		return false
	case len(rec.Seq) != len(rec.Qual):
		s.err = s.formatErrorAt(rec.Number, s.line, fmt.Sprintf("sequence/quality length mismatch: %d != %d", len(rec.Seq), len(rec.Qual)))
		return false
	}

	s.number++
	s.offset += int64(len(rec.Raw))
	s.rec = rec
	return true
}

func (s *Scanner) formatError(rec int64, reason string) error {
	return s.formatErrorAt(rec, s.line, reason)
}

func (s *Scanner) formatErrorAt(rec, line int64, reason string) error {
	return &InputFormatError{Name: s.name, Record: rec, Line: line, Reason: reason}
}

// Record returns the most recent record read by a call to Next.
func (s *Scanner) Record() *Record { return s.rec }

// Offset returns the number of bytes consumed by complete records.
func (s *Scanner) Offset() int64 { return s.offset }

// Error returns the first non-EOF error that was encountered by the Scanner.
func (s *Scanner) Error() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte{'\n'})
	return bytes.TrimSuffix(b, []byte{'\r'})
}

var gzipMagic = []byte{0x1f, 0x8b}

// Open opens the named FASTQ file for reading. The name "-" opens
// standard input. Gzip compressed input, including BGZF, is detected
// by its magic number and decompressed transparently.
func Open(name string) (io.ReadCloser, error) {
	var f *os.File
	if name == "-" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(name)
		if err != nil {
			return nil, err
		}
	}
	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, err
	}
	if !bytes.Equal(magic, gzipMagic) {
		if strings.HasSuffix(name, ".gz") && len(magic) != 0 {
			f.Close()
			return nil, fmt.Errorf("fqio: %s: not gzip compressed", name)
		}
		return readCloser{Reader: br, Closer: f}, nil
	}
	gz, err := gzip.NewReader(br)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("fqio: %s: %w", name, err)
	}
	return readCloser{Reader: gz, Closer: multiCloser{gz, f}}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Stem returns the file name of path with its directory and any FASTQ
// and compression extensions removed.
func Stem(path string) string {
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	for _, ext := range []string{".gz", ".bgz", ".fastq", ".fq", ".txt"} {
		if strings.HasSuffix(base, ext) && len(base) > len(ext) {
			base = base[:len(base)-len(ext)]
		}
	}
	return base
}
