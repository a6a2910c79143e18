package commands

import (
	"fmt"
	"log/slog"

	"htmlkit/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manages the page cache.",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Removes every cached page.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cache := newCache()
		err := cache.Clear()
		if err != nil {
			serviceutil.Fatal("failed to clear cache", err)
		}
		slog.Info("cleared cache", "dir", cache.Dir())
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path <url>",
	Short: "Prints the file a page is cached in.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path, err := newCache().Path(args[0])
		if err != nil {
			serviceutil.Fatal("invalid url", err)
		}
		fmt.Println(path)
	},
}
