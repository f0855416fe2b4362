package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/courier-mq/courier/message"
)

var showCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print a message without removing it",
	Long: `Lock the element, print its headers and body, then unlock it. The
element stays in the queue. With --body only the raw body is written,
which is the form to use for binary messages.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var showBodyOnly bool

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().BoolVar(&showBodyOnly, "body", false, "print only the raw body")
}

func runShow(cmd *cobra.Command, args []string) error {
	name := args[0]

	q, shutdown, err := openQueue(cmd.Context())
	if err != nil {
		return err
	}
	defer shutdown()

	ok, err := q.Lock(cmd.Context(), name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s is locked by another consumer or gone", name)
	}
	defer func() { _, _ = q.Unlock(cmd.Context(), name) }()

	msg, err := q.Get(cmd.Context(), name)
	if err != nil {
		return err
	}

	if showBodyOnly {
		_, err = cmd.OutOrStdout().Write(msg.Body)
		return err
	}
	printMessage(cmd, msg)
	return nil
}

func printMessage(cmd *cobra.Command, msg *message.Message) {
	out := cmd.OutOrStdout()

	keys := make([]string, 0, len(msg.Header))
	for k := range msg.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s: %s\n", k, msg.Header[k])
	}

	fmt.Fprintln(out)
	if msg.Text {
		fmt.Fprintln(out, msg.BodyString())
	} else {
		fmt.Fprintf(out, "<binary body, %d bytes, md5 %s>\n", len(msg.Body), msg.Checksum())
	}
}
