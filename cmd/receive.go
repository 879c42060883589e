package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"flickshare/internal/progress"
	"flickshare/internal/store"
	"flickshare/internal/transfer"
)

const defaultDownloadDir = "Download/FlickShare"

var (
	receiveDir  string
	receiveName string
)

var receiveCmd = &cobra.Command{
	Use:   "receive host port",
	Short: "ask a waiting sender for its file",
	Long: `receive listens on the data port, notifies the sender at host:port and
writes the incoming stream to --dir/--name.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := args[0]
		port, err := strconv.Atoi(args[1])
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port %q", args[1])
		}
		name := receiveName
		if name == "" {
			name = fmt.Sprintf("file_%d", time.Now().UnixMilli())
		}
		return receiveInto(cmd, host, port, receiveDir, name, -1)
	},
}

func init() {
	receiveCmd.Flags().StringVar(&receiveDir, "dir", defaultDownloadDir, "directory to save the file in")
	receiveCmd.Flags().StringVar(&receiveName, "name", "", "file name to save as, defaults to file_<unix millis>")
}

// receiveInto creates a fresh file under dir and receives into it. A file
// left behind by a failed transfer is removed.
func receiveInto(cmd *cobra.Command, host string, port int, dir string, name string, size int64) error {
	file, err := transfer.CreateDestination(dir, name)
	if err != nil {
		return finish(cmd, store.RECEIVING, nil, err)
	}
	path := file.Name()

	bar, done := progress.Bar(cmd.ErrOrStderr(), size, "Receiving "+name)
	report := progress.Multi(bar, progress.Log(logger, "Receiving", name))
	res, err := run(cmd.Context(), func(ctx context.Context) (*transfer.Result, error) {
		return transfer.Receive(ctx, host, port, file, report, options())
	})
	done()

	if err != nil {
		if rerr := os.Remove(path); rerr != nil {
			logger.WithError(rerr).WithField("path", path).Warn("Could not remove incomplete file")
		}
		return finish(cmd, store.RECEIVING, res, err)
	}
	logger.WithFields(logrus.Fields{"path": path, "bytes": res.Bytes}).Info("File saved")
	if err := finish(cmd, store.RECEIVING, res, nil); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "File saved: %s\n", path)
	return nil
}
