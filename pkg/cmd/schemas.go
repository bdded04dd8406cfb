package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"

	"colmet/pkg/counters"
	"colmet/pkg/utils"
)

// Schemas prints the layout of every registered schema, or of the schemas
// named on the command line.
func Schemas(args []string) {
	fs := flag.NewFlagSet("schemas", flag.ExitOnError)
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)
	utils.InitLogging(*verbose)

	if err := writeSchemas(os.Stdout, mustRegistry(), fs.Args()); err != nil {
		log.Fatal(err)
	}
}

func writeSchemas(w io.Writer, reg *counters.Registry, names []string) error {
	if len(names) == 0 {
		names = reg.Names()
	}
	for _, name := range names {
		s, err := reg.Lookup(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s (%d bytes, %d counters)\n", s.Name(), s.Len(), len(s.Counters()))

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Field", "Type", "Offset", "Width", "Unit", "Rule", "Description"})
		table.SetAutoWrapText(false)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, f := range s.Fields() {
			rule := string(f.Rule)
			if f.Header {
				rule = "header"
			}
			table.Append([]string{
				f.Name,
				f.Type.Name(),
				strconv.Itoa(f.Offset),
				strconv.Itoa(f.Type.Width()),
				string(f.Unit),
				rule,
				f.Description,
			})
		}
		table.Render()
		fmt.Fprintln(w)
	}
	return nil
}
