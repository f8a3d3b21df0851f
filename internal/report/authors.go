package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jcdickinson/anthocheck/internal/authors"
)

// WriteAuthors lists every author of reg, one per line, followed by the
// near-duplicate pairs:
//
//	Huon%20Wilson  Huon Wilson  declared,cited  finding-closure-in-rust
//	ambiguous: Manish%20Goregaokar ~ Manish%20aGoregaokar (distance 1)
func WriteAuthors(w io.Writer, reg *authors.Registry) error {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for _, a := range reg.Authors() {
		var status []string
		if a.Declared {
			status = append(status, "declared")
		}
		if a.Cited {
			status = append(status, "cited")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Slug, a.Name, strings.Join(status, ","), strings.Join(a.Documents, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, amb := range reg.Ambiguities() {
		fmt.Fprintf(&b, "ambiguous: %s ~ %s (distance %d)\n", amb.A, amb.B, amb.Distance)
	}
	fmt.Fprintf(&b, "%s, %s\n", plural(len(reg.Authors()), "author"), plural(len(reg.Ambiguities()), "ambiguous pair"))

	_, err := io.WriteString(w, b.String())
	return err
}
