package transfer

import (
	"errors"
	"fmt"

	apperrors "flickshare/internal/errors"
	"flickshare/internal/store"
)

// Report renders the outcome of a session as the status line shown to the
// user. res may be nil when the session never started.
func Report(direction store.TransferDirection, res *Result, err error) string {
	if err == nil {
		var peer string
		var n int64
		if res != nil {
			peer, n = res.Peer, res.Bytes
		}
		if direction == store.SENDING {
			return fmt.Sprintf("File Sent Successfully\nPeer: %s\nSize: %d bytes", peer, n)
		}
		return fmt.Sprintf("Transfer Successful\nPeer: %s\nSize: %d bytes", peer, n)
	}

	var apperr *apperrors.AppError
	if !errors.As(err, &apperr) {
		return fmt.Sprintf("Transfer Failed: %v", err)
	}
	cause := apperrors.Cause(err)

	switch apperr.Type {
	case apperrors.ErrBind:
		if direction == store.RECEIVING {
			return fmt.Sprintf("Local Bind Error: %v", cause)
		}
		return fmt.Sprintf("Bind Error: %v", cause)
	case apperrors.ErrBusy:
		return fmt.Sprintf("Bind Error: %s %v", apperr.Addr, cause)
	case apperrors.ErrAccept:
		return fmt.Sprintf("Accept Error: %v", cause)
	case apperrors.ErrConnect:
		return fmt.Sprintf("Failed to connect back to %s: %v", apperr.Addr, cause)
	case apperrors.ErrNotify:
		return fmt.Sprintf("Could not notify remote device %s: %v", apperr.Addr, cause)
	case apperrors.ErrRead, apperrors.ErrWrite:
		return fmt.Sprintf("Transfer Incomplete: %s error: %v", apperr.Type, cause)
	case apperrors.ErrCancelled:
		return fmt.Sprintf("Transfer Cancelled: %v", cause)
	case apperrors.ErrMetadata:
		return fmt.Sprintf("Metadata Error: %v", cause)
	default:
		return fmt.Sprintf("Transfer Failed: %v", err)
	}
}
