package commands

import (
	"fmt"
	"log/slog"
	"time"

	"htmlkit/lib/browser"
	"htmlkit/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	fetchOut     *string
	fetchWaitFor *string
	fetchWaitMax *time.Duration
)

func init() {
	fetchOut = fetchCmd.Flags().StringP("out", "o", "", "Writes the serialized page to this file.")
	fetchWaitFor = fetchCmd.Flags().String("wait-for", "", "Waits until the page contains this text.")
	fetchWaitMax = fetchCmd.Flags().Duration("wait-max", time.Second*10, "How long --wait-for waits before giving up.")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <url> [--out <file>] [--wait-for <text>]",
	Short: "Loads a page and prints its title and final location.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		defer client.Close()

		page := loadPage(cmd.Context(), client, args[0])
		if *fetchWaitFor != "" {
			browser.WaitForText(cmd.Context(), client.Live(), *fetchWaitFor, *fetchWaitMax)
		}

		fmt.Println(page.Title())
		fmt.Println(page.Location())

		if *fetchOut != "" {
			err := page.Save(*fetchOut)
			if err != nil {
				serviceutil.Fatal("failed to save page", err)
			}
			slog.Info("saved page", "path", *fetchOut)
		}
	},
}
