package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/me/wikigo/pkg/confluence"
	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Perform a raw authenticated GET and print the decoded body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := make(confluence.Query, len(params))
			for _, p := range params {
				k, v, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("malformed --param %q, want key=value", p)
				}
				query[k] = v
			}

			resp, err := client.Get(cmd.Context(), args[0], query)
			if err != nil {
				return fmt.Errorf("get %s: %w", args[0], err)
			}

			switch {
			case resp.Empty:
				fmt.Println("(empty response)")
			case resp.JSON != nil:
				out, err := json.MarshalIndent(resp.JSON, "", "  ")
				if err != nil {
					return fmt.Errorf("encode response: %w", err)
				}
				fmt.Println(string(out))
			default:
				fmt.Println(resp.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "Query parameter as key=value (repeatable)")
	return cmd
}
