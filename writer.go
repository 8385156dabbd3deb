package featureavro

import (
	"bufio"
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/linkedin/goavro/v2"
)

// FileSystem is the destination filesystem of an export.
type FileSystem interface {
	// Exists reports whether a file or directory exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes path, and everything below it when recursive is set.
	Delete(ctx context.Context, path string, recursive bool) error

	// Create opens a new file at path for writing.
	Create(ctx context.Context, path string) (io.WriteCloser, error)
}

// Codec names accepted by WriterOptions.
const (
	CodecNull    = goavro.CompressionNullLabel
	CodecDeflate = goavro.CompressionDeflateLabel
	CodecSnappy  = goavro.CompressionSnappyLabel
)

// WriterOptions configures the Avro container written by a Writer.
type WriterOptions struct {
	Codec       string // Block compression codec (default: null)
	BlockLength int    // Records per container block (default: 1000)
	BufferSize  int    // Stream buffer size in bytes (default: 64 KiB)
}

// DefaultWriterOptions returns default options for writing Avro files.
func DefaultWriterOptions() *WriterOptions {
	return &WriterOptions{
		Codec:       CodecNull,
		BlockLength: 1000,
		BufferSize:  64 << 10,
	}
}

func (o *WriterOptions) withDefaults() WriterOptions {
	def := DefaultWriterOptions()
	if o == nil {
		return *def
	}
	opts := *o
	if opts.Codec == "" {
		opts.Codec = def.Codec
	}
	if opts.BlockLength <= 0 {
		opts.BlockLength = def.BlockLength
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = def.BufferSize
	}
	return opts
}

type writerState uint8

const (
	stateUnopened writerState = iota
	stateOpen
	stateClosed
)

// Writer streams records into a new Avro object container file.
//
// A Writer starts unopened. Open replaces whatever exists at the
// destination, Append adds records, and Close flushes and releases the
// encoder and the stream. Close must be called on every path once Open has
// been called, including when Open failed.
type Writer struct {
	fs   FileSystem
	path string
	opts WriterOptions

	state   writerState
	stream  io.WriteCloser
	buf     *bufio.Writer
	ocf     *goavro.OCFWriter
	pending []interface{}
	count   int
}

// NewWriter returns an unopened writer for path on fs.
func NewWriter(fs FileSystem, path string, opts *WriterOptions) *Writer {
	return &Writer{fs: fs, path: path, opts: opts.withDefaults()}
}

// Open deletes any existing file or directory at the destination, creates
// the file and writes the container header.
func (w *Writer) Open(ctx context.Context) error {
	switch w.state {
	case stateOpen:
		return nil
	case stateClosed:
		return ErrWriterClosed
	}
	if w.fs == nil {
		return ErrNilFileSystem
	}
	if w.path == "" {
		return ErrInvalidPath
	}

	exists, err := w.fs.Exists(ctx, w.path)
	if err != nil {
		return errors.Wrapf(err, "checking %q", w.path)
	}
	if exists {
		if err := w.fs.Delete(ctx, w.path, true); err != nil {
			return errors.Wrapf(err, "deleting %q", w.path)
		}
	}

	stream, err := w.fs.Create(ctx, w.path)
	if err != nil {
		return errors.Wrapf(err, "creating %q", w.path)
	}
	w.stream = stream
	w.buf = bufio.NewWriterSize(stream, w.opts.BufferSize)
	w.state = stateOpen

	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w.buf,
		Schema:          Schema,
		CompressionName: w.opts.Codec,
	})
	if err != nil {
		return errors.Wrap(err, "initializing avro container")
	}
	w.ocf = ocf
	w.pending = make([]interface{}, 0, w.opts.BlockLength)
	return nil
}

// Append adds r to the current block. A full block is encoded and written
// to the stream.
func (w *Writer) Append(r Record) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	native, err := r.native()
	if err != nil {
		return err
	}
	w.pending = append(w.pending, native)
	w.count++
	if len(w.pending) >= w.opts.BlockLength {
		return w.flushBlock()
	}
	return nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() int {
	return w.count
}

// Close encodes the pending block, flushes the buffer and closes the
// stream. It is safe to call more than once.
func (w *Writer) Close() error {
	if w.state != stateOpen {
		w.state = stateClosed
		return nil
	}
	w.state = stateClosed

	var err error
	if w.ocf != nil {
		err = w.flushBlock()
	}
	if err == nil {
		err = errors.Wrapf(w.buf.Flush(), "flushing %q", w.path)
	}
	return errors.CombineErrors(err, errors.Wrapf(w.stream.Close(), "closing %q", w.path))
}

func (w *Writer) checkOpen() error {
	switch w.state {
	case stateUnopened:
		return ErrWriterNotOpen
	case stateClosed:
		return ErrWriterClosed
	}
	if w.ocf == nil {
		return ErrWriterNotOpen
	}
	return nil
}

func (w *Writer) flushBlock() error {
	if len(w.pending) == 0 {
		return nil
	}
	err := w.ocf.Append(w.pending)
	w.pending = w.pending[:0]
	return errors.Wrapf(err, "writing block to %q", w.path)
}
