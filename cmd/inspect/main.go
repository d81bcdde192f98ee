package main

import (
	"chat-sync/domain"
	"chat-sync/repositories"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	what := flag.String("what", "messages", "messages or peers")
	room := flag.String("room", "", "Room to dump, every room when empty")
	flag.Parse()

	// Read-only so that a running daemon keeps its lock
	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	store := repositories.NewMessageRepository(db, slog.Default())
	var header []string
	var rows [][]string

	switch *what {
	case "messages":
		messages, err := store.QueryAll(*room)
		if err != nil {
			log.Fatal("Error while reading messages: ", err)
		}
		header = []string{"Timestamp", "Room", "Sender", "Text", "Location"}
		rows = lo.Map(messages, func(m domain.ChatMessage, _ int) []string {
			return []string{m.Timestamp.Format(time.RFC3339Nano), m.ChatRoom, m.SenderID, m.Text, formatLocation(m.Latitude, m.Longitude)}
		})
	case "peers":
		peers, err := store.Peers()
		if err != nil {
			log.Fatal("Error while reading peers: ", err)
		}
		header = []string{"Sender", "Last seen", "Last room", "Location"}
		rows = lo.Map(peers, func(p domain.Peer, _ int) []string {
			return []string{p.SenderID, p.LastSeen.Format(time.RFC3339), p.LastRoom, formatLocation(p.Latitude, p.Longitude)}
		})
	default:
		log.Fatalf("Unknown -what %q, expected messages or peers", *what)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
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
	table.AppendBulk(rows)
	table.Render()

	fmt.Printf("\n%d %s\n", len(rows), *what)
}

func formatLocation(latitude, longitude *float64) string {
	if latitude == nil || longitude == nil {
		return "-"
	}
	return strconv.FormatFloat(*latitude, 'f', 5, 64) + "," + strconv.FormatFloat(*longitude, 'f', 5, 64)
}
