package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteText writes an aligned plain-text table followed by the summary and warnings.
func WriteText(w io.Writer, doc Document) error {
	if err := doc.validate(); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	margins := doc.Params.Margins

	fmt.Fprintln(tw, strings.Join(lineHeader(margins), "\t")+"\t")
	for _, line := range doc.Result.Lines {
		cells := []string{fmt.Sprint(line.Line), line.Title, line.FormatCode, fmt.Sprint(line.Quantity), EUR(line.UnitPrice), CLP(line.UnitLandedCost)}
		for _, m := range margins {
			p, _ := line.PriceFor(m)
			cells = append(cells, CLP(p))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	sw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range summaryRows(doc) {
		fmt.Fprintf(sw, "%s\t%s\n", r[0], r[1])
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	for _, warn := range doc.Result.Warnings {
		if _, err := fmt.Fprintln(w, warningText(warn)); err != nil {
			return err
		}
	}
	return nil
}
