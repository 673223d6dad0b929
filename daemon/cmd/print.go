package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"go.ntppool.org/tablerank/scorer/score"
)

func printScores(w io.Writer, scores []score.Score, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(scores)
	}

	if len(scores) == 0 {
		fmt.Fprintln(w, "no eligible tables")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "rank\tid\tcount\tA\tB\tties\talternation\tbalance\tcomposite\t")
	for i, s := range scores {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%.2f\t%.2f\t%.2f\t\n",
			i+1, s.EntityID, s.Count, s.Primary[0], s.Primary[1], s.Ties,
			s.Alternation, s.Balance, s.Composite,
		)
	}
	return tw.Flush()
}
