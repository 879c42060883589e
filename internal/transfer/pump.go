package transfer

import (
	"context"
	"io"

	apperrors "flickshare/internal/errors"
	"flickshare/internal/progress"
)

// maxEmptyReads bounds how many consecutive (0, nil) reads are tolerated
// before the source is treated as broken.
const maxEmptyReads = 100

// Pump copies a source into a destination in fixed-size chunks.
//
// Threshold controls how often Report is called: zero reports after every
// chunk, a positive value reports only once the bytes moved since the last
// report exceed it. Any read or write failure stops the pump; there are no
// retries.
type Pump struct {
	ChunkSize int
	Threshold int64
	Report    progress.Func

	total        int64
	lastReported int64
}

func NewSendPump(chunkSize int, report progress.Func) *Pump {
	return &Pump{ChunkSize: chunkSize, Report: progress.Safe(report)}
}

func NewReceivePump(chunkSize int, threshold int64, report progress.Func) *Pump {
	return &Pump{ChunkSize: chunkSize, Threshold: threshold, Report: progress.Safe(report)}
}

// Total is the number of bytes fully written to the destination so far.
func (p *Pump) Total() int64 {
	return p.total
}

// Run moves bytes until src reports io.EOF. It returns the byte count
// reached and, on abort, an AppError of type ErrRead, ErrWrite or
// ErrCancelled.
func (p *Pump) Run(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	size := p.ChunkSize
	if size <= 0 {
		size = ChunkSize
	}
	report := p.Report
	if report == nil {
		report = progress.Safe(nil)
	}

	buffer := make([]byte, size)
	empty := 0
	for {
		if err := ctx.Err(); err != nil {
			return p.total, apperrors.New(apperrors.ErrCancelled, "pump", "", err)
		}

		n, rerr := src.Read(buffer)
		if n > 0 {
			empty = 0
			wn, werr := dst.Write(buffer[:n])
			if werr == nil && wn != n {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				return p.total, apperrors.New(apperrors.ErrWrite, "write", "", werr)
			}
			p.total += int64(n)

			if p.Threshold <= 0 || p.total-p.lastReported > p.Threshold {
				report(p.total)
				p.lastReported = p.total
			}
		}

		switch {
		case rerr == io.EOF:
			return p.total, nil
		case rerr != nil:
			return p.total, apperrors.New(apperrors.ErrRead, "read", "", rerr)
		case n == 0:
			empty++
			if empty >= maxEmptyReads {
				return p.total, apperrors.New(apperrors.ErrRead, "read", "", io.ErrNoProgress)
			}
		}
	}
}
