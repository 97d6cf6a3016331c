package telegram

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/crypto"
	"github.com/gotd/td/tg"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// UploadPartSize is the part size accepted by upload.saveFilePart for
// every part except the last one.
const UploadPartSize = 512 * 1024

const (
	bigFileThreshold     = 10 * 1024 * 1024
	maxUploadParts       = 8000
	defaultUploadWorkers = 4
)

// Source is file content to be uploaded.
type Source struct {
	Name string

	path string
	data []byte
	r    io.Reader
	size int64
}

func FileSource(path string) Source {
	return Source{Name: filepath.Base(path), path: path, size: -1}
}

func BytesSource(name string, data []byte) Source {
	return Source{Name: name, data: data, size: int64(len(data))}
}

// ReaderSource uploads r. A negative size reads r into memory first.
func ReaderSource(name string, r io.Reader, size int64) Source {
	return Source{Name: name, r: r, size: size}
}

type sizedReaderAt interface {
	io.ReaderAt
	Size() int64
}

type sectionSource struct {
	io.ReaderAt
	size int64
}

func (s sectionSource) Size() int64 { return s.size }

func (s Source) open() (_ sizedReaderAt, closeFn func() error, re error) {
	noop := func() error { return nil }
	switch {
	case s.path != "":
		f, err := os.Open(s.path)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open")
		}
		defer func() {
			if re != nil {
				multierr.AppendInto(&re, f.Close())
			}
		}()
		info, err := f.Stat()
		if err != nil {
			return nil, nil, errors.Wrap(err, "stat")
		}
		if info.IsDir() {
			return nil, nil, errors.Errorf("%s is a directory", s.path)
		}
		return sectionSource{ReaderAt: f, size: info.Size()}, f.Close, nil
	case s.data != nil:
		return bytes.NewReader(s.data), noop, nil
	case s.r != nil:
		if ra, ok := s.r.(io.ReaderAt); ok && s.size >= 0 {
			return sectionSource{ReaderAt: ra, size: s.size}, noop, nil
		}
		data, err := io.ReadAll(s.r)
		if err != nil {
			return nil, nil, errors.Wrap(err, "read")
		}
		return bytes.NewReader(data), noop, nil
	default:
		return nil, nil, errors.New("no content")
	}
}

// UploadHandle references a fully uploaded file. It is valid for a single
// send call.
type UploadHandle struct {
	FileID int64
	Parts  int
	Size   int64
	Name   string
	Big    bool
}

func (h UploadHandle) InputFile() tg.InputFileClass {
	if h.Big {
		return &tg.InputFileBig{ID: h.FileID, Parts: h.Parts, Name: h.Name}
	}
	return &tg.InputFile{ID: h.FileID, Parts: h.Parts, Name: h.Name}
}

// Uploader splits content into UploadPartSize parts and uploads them with
// bounded concurrency.
type Uploader struct {
	api     *tg.Client
	workers int
	log     *slog.Logger
	now     func() time.Time
}

func NewUploader(invoker tg.Invoker, workers int, log *slog.Logger) *Uploader {
	if workers <= 0 {
		workers = defaultUploadWorkers
	}
	if log == nil {
		log = slog.Default()
	}
	return &Uploader{api: tg.NewClient(invoker), workers: workers, log: log, now: time.Now}
}

func (u *Uploader) Upload(ctx context.Context, src Source) (_ UploadHandle, re error) {
	content, closeFn, err := src.open()
	if err != nil {
		return UploadHandle{}, newError(KindUpload, err, "cannot read %q", src.Name)
	}
	defer func() {
		if closeErr := closeFn(); closeErr != nil && re == nil {
			re = newError(KindUpload, closeErr, "close %q", src.Name)
		}
	}()

	size := content.Size()
	if size <= 0 {
		return UploadHandle{}, newError(KindUpload, nil, "%q is empty", src.Name)
	}
	parts := int((size + UploadPartSize - 1) / UploadPartSize)
	if parts > maxUploadParts {
		return UploadHandle{}, newError(KindUpload, nil, "%q is too large: %d parts", src.Name, parts)
	}
	fileID, err := crypto.RandInt64(rand.Reader)
	if err != nil {
		return UploadHandle{}, newError(KindUpload, err, "generate file id")
	}
	handle := UploadHandle{
		FileID: fileID,
		Parts:  parts,
		Size:   size,
		Name:   src.Name,
		Big:    size > bigFileThreshold,
	}

	started := u.now()
	var acked atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)
	for part := 0; part < parts; part++ {
		g.Go(func() error {
			if err := u.uploadPart(gctx, content, handle, part); err != nil {
				return err
			}
			acked.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var e *Error
		if errors.As(err, &e) {
			return UploadHandle{}, err
		}
		return UploadHandle{}, newError(KindUpload, err, "upload %q failed", src.Name)
	}
	if got := acked.Load(); got != int64(parts) {
		return UploadHandle{}, newError(KindUpload, nil, "upload %q: %d of %d parts acknowledged", src.Name, got, parts)
	}

	u.log.Debug("file uploaded",
		"name", src.Name,
		"size", size,
		"parts", parts,
		"big", handle.Big,
		"duration", u.now().Sub(started),
	)
	return handle, nil
}

func (u *Uploader) uploadPart(ctx context.Context, content io.ReaderAt, h UploadHandle, part int) error {
	offset := int64(part) * UploadPartSize
	length := int64(UploadPartSize)
	if remaining := h.Size - offset; remaining < length {
		length = remaining
	}
	buf := make([]byte, length)
	n, err := content.ReadAt(buf, offset)
	if n != len(buf) {
		return newError(KindUpload, err, "read part %d of %q: got %d of %d bytes", part, h.Name, n, len(buf))
	}

	var ok bool
	if h.Big {
		ok, err = u.api.UploadSaveBigFilePart(ctx, &tg.UploadSaveBigFilePartRequest{
			FileID:         h.FileID,
			FilePart:       part,
			FileTotalParts: h.Parts,
			Bytes:          buf,
		})
	} else {
		ok, err = u.api.UploadSaveFilePart(ctx, &tg.UploadSaveFilePartRequest{
			FileID:   h.FileID,
			FilePart: part,
			Bytes:    buf,
		})
	}
	if err != nil {
		return newError(KindUpload, err, "part %d of %q: %s", part, h.Name, errorLabel(err))
	}
	if !ok {
		return newError(KindUpload, nil, "part %d of %q was not acknowledged", part, h.Name)
	}
	return nil
}

// errorLabel returns a short description of err suitable for caller facing
// messages.
func errorLabel(err error) string {
	if t := rpcType(err); t != "" {
		return t
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err.Error()
	}
	return "transport failure"
}
