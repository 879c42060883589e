package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flickshare/internal/consent"
	"flickshare/internal/discovery"
)

var (
	discoverDir     string
	discoverTimeout time.Duration
	discoverYes     bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "find a sender announcing over mDNS and receive its file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), discoverTimeout)
		peer, err := discovery.Browse(ctx, logger)
		cancel()
		if err != nil {
			return err
		}
		return offerAndReceive(cmd, peer)
	},
}

// offerAndReceive asks for consent unless --yes was given, then receives
// the peer's file under --dir.
func offerAndReceive(cmd *cobra.Command, peer *discovery.Peer) error {
	if !discoverYes {
		accepted, err := consent.Ask(cmd.InOrStdin(), cmd.OutOrStdout(), consent.Offer{
			Peer:     peer.Instance + " (" + peer.Addr() + ")",
			FileName: peer.FileName,
			FileSize: peer.FileSize,
		})
		if err != nil {
			return err
		}
		if !accepted {
			fmt.Fprintln(cmd.OutOrStdout(), "Transfer declined")
			return nil
		}
	}
	return receiveInto(cmd, peer.Host, peer.Port, discoverDir, peer.FileName, peer.FileSize)
}

func init() {
	discoverCmd.Flags().StringVar(&discoverDir, "dir", defaultDownloadDir, "directory to save the file in")
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", time.Minute, "how long to look for a sender")
	discoverCmd.Flags().BoolVarP(&discoverYes, "yes", "y", false, "accept the first offer without asking")
}
