package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/courier-mq/courier/message"
)

var addCmd = &cobra.Command{
	Use:   "add [BODY]",
	Short: "Add a message to the queue",
	Long: `Add a message to the queue. The body comes from the argument, from a
file (--file), or from stdin (--file -). Headers are set with
repeatable --header key=value flags.

Example:
  courier add "hello world" --header subject=greeting
  cat payload.bin | courier add --file - --binary`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

var (
	addFile    string
	addHeaders []string
	addBinary  bool
)

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "read the body from a file (- for stdin)")
	addCmd.Flags().StringArrayVarP(&addHeaders, "header", "H", nil, "message header as key=value (repeatable)")
	addCmd.Flags().BoolVar(&addBinary, "binary", false, "treat the body as binary instead of text")
}

func runAdd(cmd *cobra.Command, args []string) error {
	body, err := readBody(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	var msg *message.Message
	if addBinary {
		msg = message.NewBinary(body)
	} else {
		msg = message.NewText(string(body))
	}

	headers, err := parseHeaders(addHeaders)
	if err != nil {
		return err
	}
	for k, v := range headers {
		msg.SetHeader(k, v)
	}

	q, shutdown, err := openQueue(cmd.Context())
	if err != nil {
		return err
	}
	defer shutdown()

	name, err := q.Add(cmd.Context(), msg)
	if err != nil {
		return fmt.Errorf("adding message: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), name)
	return nil
}

// readBody resolves the message body from the argument, --file, or
// stdin. An explicit argument and --file are mutually exclusive.
func readBody(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 1 && addFile != "" {
		return nil, fmt.Errorf("cannot combine a body argument with --file")
	}
	if len(args) == 1 {
		return []byte(args[0]), nil
	}
	if addFile == "" || addFile == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(addFile)
	if err != nil {
		return nil, fmt.Errorf("reading body file: %w", err)
	}
	return data, nil
}

// parseHeaders turns key=value flags into a header map.
func parseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q: want key=value", pair)
		}
		headers[key] = value
	}
	return headers, nil
}
