package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/me/wikigo/pkg/confluence"
	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var expand, excerpt string
	var max int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <cql>",
		Short: "Search content with CQL and stream the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := confluence.SearchOptions{
				CQL:     args[0],
				Expand:  expand,
				Excerpt: excerpt,
			}
			if err := client.Search(opts); err != nil {
				return fmt.Errorf("start search: %w", err)
			}

			started := time.Now()
			count := 0
			for max <= 0 || count < max {
				rec, err := client.NextResult(cmd.Context())
				if errors.Is(err, confluence.Done) {
					break
				}
				if err != nil {
					return fmt.Errorf("search: %w", err)
				}

				if asJSON {
					line, err := json.Marshal(rec)
					if err != nil {
						return fmt.Errorf("encode record: %w", err)
					}
					fmt.Println(string(line))
				} else {
					fmt.Println(recordLine(rec))
				}
				count++
			}

			fmt.Printf("%s result(s) in %s\n",
				humanize.Comma(int64(count)),
				time.Since(started).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&expand, "expand", "", "Record fields to expand, comma separated")
	cmd.Flags().StringVar(&excerpt, "excerpt", "", "Excerpt strategy for each result")
	cmd.Flags().IntVar(&max, "max", 0, "Stop after this many results (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print each record as a JSON line")
	return cmd
}

// recordLine renders one search record for terminal output. Records
// are opaque, so unknown shapes fall back to compact JSON.
func recordLine(rec confluence.Record) string {
	title, _ := rec["title"].(string)
	if title == "" {
		b, _ := json.Marshal(rec)
		return string(b)
	}

	spaceKey := ""
	if space, ok := rec["space"].(map[string]any); ok {
		spaceKey, _ = space["key"].(string)
	}
	id, _ := rec["id"].(string)

	if spaceKey != "" {
		return fmt.Sprintf("[%s] %s  (%s)", spaceKey, title, id)
	}
	return fmt.Sprintf("%s  (%s)", title, id)
}
