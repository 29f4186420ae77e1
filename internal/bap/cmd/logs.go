package cmd

import (
	"fmt"
	"os"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"

	"github.com/karatemonkey63/bap-1/internal/bap/log"
)

var followLogs bool

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the bap log file",
	Long:  `Logs prints the contents of the log file, optionally following it as new entries are written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := log.FilePath()
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("no log file at %s", path)
		}

		t, err := tail.TailFile(path, tail.Config{
			Follow:    followLogs,
			ReOpen:    followLogs,
			MustExist: true,
			Logger:    tail.DiscardingLogger,
		})
		if err != nil {
			return err
		}
		defer t.Cleanup()

		go func() {
			<-cmd.Context().Done()
			t.Stop()
		}()

		for line := range t.Lines {
			if line.Err != nil {
				continue
			}
			fmt.Println(line.Text)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().BoolVarP(&followLogs, "follow", "f", false, "follow the log as it grows")
	rootCmd.AddCommand(logsCmd)
}
