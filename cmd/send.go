package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"flickshare/internal/discovery"
	"flickshare/internal/progress"
	"flickshare/internal/store"
	"flickshare/internal/transfer"
)

var (
	sendPort     int
	sendName     string
	sendAnnounce bool
	sendInstance string
)

var sendCmd = &cobra.Command{
	Use:   "send path/to/file",
	Short: "wait for a receiver and send it a file",
	Long: `send listens on --port until a receiver notifies it, then connects back to the
receiver's data port and streams the file. With --announce the file is also
advertised over mDNS so "flick discover" can find it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		name := sendName
		if name == "" {
			name = args[0]
		}
		info, err := transfer.Info(file, name)
		if err != nil {
			file.Close()
			return finish(cmd, store.SENDING, nil, err)
		}

		if sendAnnounce {
			announcement, err := discovery.Announce(cmd.Context(), discovery.Service{
				Instance: sendInstance,
				Port:     sendPort,
				FileName: info.Filename,
				FileSize: info.Size,
			}, logger)
			if err != nil {
				file.Close()
				return err
			}
			defer announcement.Shutdown()
		}

		bar, done := progress.Bar(cmd.ErrOrStderr(), info.Size, "Sending "+info.Filename)
		report := progress.Multi(bar, progress.Log(logger, "Sending", info.Filename))
		res, err := run(cmd.Context(), func(ctx context.Context) (*transfer.Result, error) {
			return transfer.Send(ctx, sendPort, file, report, options())
		})
		done()
		return finish(cmd, store.SENDING, res, err)
	},
}

func init() {
	sendCmd.Flags().IntVarP(&sendPort, "port", "p", transfer.RendezvousPort, "port to wait on for the receiver's notification")
	sendCmd.Flags().StringVar(&sendName, "name", "", "file name to advertise, defaults to the file's base name")
	sendCmd.Flags().BoolVar(&sendAnnounce, "announce", false, "advertise the file over mDNS")
	sendCmd.Flags().StringVar(&sendInstance, "instance", "", "mDNS instance name, defaults to "+discovery.InstancePrefix+"<hostname>")
}
