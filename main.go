package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vietddude/partners/internal/infra/fetch"
	"github.com/vietddude/partners/internal/sheets"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}

	primary := os.Getenv("PORTAL_API_URL")
	if primary == "" {
		log.Fatalf("PORTAL_API_URL is not set")
	}
	spreadsheetID := os.Getenv("PORTAL_SPREADSHEET_ID")
	if spreadsheetID == "" {
		spreadsheetID = "demo"
	}

	ctx := context.Background()

	// 1. Build candidates, primary first
	candidates := fetch.BuildCandidates(fetch.CandidateConfig{
		Primary:   primary,
		Fallbacks: splitList(os.Getenv("PORTAL_FALLBACK_URLS")),
		Broken:    splitList(os.Getenv("PORTAL_BROKEN_URLS")),
	})

	// 2. Create client with status lines on retry
	cfg := fetch.DefaultConfig()
	cfg.OnStatus = func(msg string) {
		fmt.Printf("🔄 %s\n", msg)
	}
	client, err := fetch.NewClient(candidates, cfg)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	api := sheets.NewClient(client)

	fmt.Println("=== Reading spreadsheet", spreadsheetID, "===")
	fmt.Println()

	// 3. List tabs, then read each one
	meta, err := api.ListSheets(ctx, spreadsheetID, false)
	if err != nil {
		log.Fatalf("List sheets failed: %v", err)
	}
	for _, s := range meta.Sheets {
		start := time.Now()
		data, err := api.GetSheet(ctx, spreadsheetID, s.Title, false)
		if err != nil {
			log.Printf("%s failed: %v", s.Title, err)
			continue
		}
		fmt.Printf("%s: %d rows in %v\n", s.Title, len(data.RawRows), time.Since(start).Round(time.Millisecond))
	}

	fmt.Println()

	// 4. Show candidate health
	fmt.Println("=== Backend Health ===")
	for _, res := range api.Health(ctx) {
		mark := "✅"
		if !res.OK {
			mark = "❌"
		}
		fmt.Printf("%s %s (%v)\n", mark, res.URL, res.Latency.Round(time.Millisecond))
		if res.Err != nil {
			fmt.Printf("   %v\n", res.Err)
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
