package transfer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	apperrors "flickshare/internal/errors"
	"flickshare/internal/progress"
	"flickshare/internal/store"
)

type Stater interface {
	Stat() (fs.FileInfo, error)
}

type StatCloser interface {
	Stater
	io.Closer
}

// Info reads the size of an open file. name is what the user picked; the
// handle itself may not know it.
func Info(file Stater, name string) (FileInfo, error) {
	stat, err := file.Stat()
	if err != nil {
		return FileInfo{}, apperrors.New(apperrors.ErrMetadata, "stat", name, err)
	}
	if stat.IsDir() {
		return FileInfo{}, apperrors.New(apperrors.ErrMetadata, "stat", name, fmt.Errorf("%s is a directory", name))
	}
	if name == "" {
		name = stat.Name()
	}
	return FileInfo{Filename: filepath.Base(name), Size: stat.Size()}, nil
}

// GetFileInfo takes ownership of file, closes it and returns a readable
// summary of its name and size, or the metadata error.
func GetFileInfo(file StatCloser, filename string) string {
	defer file.Close()
	return DescribeFile(Info(file, filename))
}

// DescribeFile renders the result of Info as a status line.
func DescribeFile(info FileInfo, err error) string {
	if err != nil {
		return Report(store.SENDING, nil, err)
	}
	return fmt.Sprintf("Success!\nFile Name: %s\nSize: %d bytes", info.Filename, info.Size)
}

// SendFile listens on port, waits for a receiver and pushes file to it,
// reporting cumulative bytes after every chunk. It blocks until the
// transfer ends and returns the status line.
func SendFile(port int, file io.ReadCloser, report progress.Func) string {
	res, err := Send(context.Background(), port, file, report, DefaultOptions())
	return Report(store.SENDING, res, err)
}

// ReceiveFile notifies the sender at host:port, accepts its data connection
// on DataPort and writes the stream to file, reporting progress every
// ReceiveReportThreshold bytes. It blocks until the transfer ends and
// returns the status line.
func ReceiveFile(host string, port int, file io.WriteCloser, report progress.Func) string {
	res, err := Receive(context.Background(), host, port, file, report, DefaultOptions())
	return Report(store.RECEIVING, res, err)
}
