package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"team-chat/internal"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, channel:, user:, msgid:)")
	limit := flag.Int("limit", 200, "Maximum number of keys")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithReadOnly(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	data, err := internal.Scan(db, *prefix, *limit, internal.DefaultMapper)
	if err != nil {
		log.Fatal("Scan failed: ", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Namespace", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, row := range data.Items {
		table.Append([]string{row.Key, row.Type, row.Timestamp, row.EntityID, row.Namespace, row.Detail})
	}
	table.Render()

	if data.Truncated {
		fmt.Printf("\n(truncated at %d keys)\n", *limit)
	}
}
