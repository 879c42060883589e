package consent

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Offer is a file a discovered sender is ready to push.
type Offer struct {
	Peer     string
	FileName string
	FileSize int64
}

func (o Offer) Message() string {
	size := "unknown size"
	if o.FileSize >= 0 {
		size = fmt.Sprintf("%d bytes", o.FileSize)
	}
	return fmt.Sprintf("%s wants to send %s (%s). Accept? (y/n): ", o.Peer, o.FileName, size)
}

// Ask prints the offer to w and reads one line from r. Only y or yes,
// in any case, accepts; an empty line or end of input declines.
func Ask(r io.Reader, w io.Writer, offer Offer) (bool, error) {
	if _, err := fmt.Fprint(w, offer.Message()); err != nil {
		return false, fmt.Errorf("failed to send consent prompt: %w", err)
	}

	input, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read consent response: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
