// Package main prints the upcoming distribution instants and their
// monthly unlock times.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rudolf-ledger/internal/token"
)

func main() {
	var (
		from    = flag.String("from", "", "Reference date (YYYY-MM-DD); defaults to today")
		years   = flag.Int("years", 5, "Number of distributions to print")
		unlocks = flag.Bool("unlocks", false, "Also print the monthly unlock times")
	)
	flag.Parse()

	ref := time.Now().UTC()
	if *from != "" {
		t, err := time.ParseInLocation("2006-01-02", *from, time.UTC)
		if err != nil {
			log.Fatalf("Invalid -from date: %v", err)
		}
		ref = t
	}
	if *years <= 0 {
		log.Fatalf("-years must be positive, got %d", *years)
	}

	year, ts := token.FirstXmasAtOrAfter(ref)
	for i := 0; i < *years; i++ {
		fmt.Fprintf(os.Stdout, "%d  %s  (%d)\n", year, format(ts), ts)
		if *unlocks {
			for k := 0; k < token.UnlockSlots; k++ {
				at := ts + int64(k)*token.MonthSeconds
				fmt.Fprintf(os.Stdout, "      unlock %2d/%d  %s\n", k+1, token.UnlockSlots, format(at))
			}
		}
		year, ts = token.NextXmas(year, ts)
	}
}

func format(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
