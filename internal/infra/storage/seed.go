package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// LoadSeeds reads spreadsheet seeds from a YAML file of the form
//
//	spreadsheets:
//	  - id: partners
//	    title: Our Partners
//	    sheets:
//	      - title: Partners
//	        rows: [[Name, Tier], [Acme, Gold]]
func LoadSeeds(path string) ([]SpreadsheetSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var doc struct {
		Spreadsheets []SpreadsheetSeed `yaml:"spreadsheets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for _, s := range doc.Spreadsheets {
		if s.ID == "" {
			return nil, fmt.Errorf("seed spreadsheet without id")
		}
	}
	return doc.Spreadsheets, nil
}

// DemoSeeds is the content served when no seed file is configured.
func DemoSeeds() []SpreadsheetSeed {
	return []SpreadsheetSeed{{
		ID:    "demo",
		Title: "Our Partners",
		Sheets: []SheetSeed{
			{
				Title: "Partners",
				Rows: [][]string{
					{"Name", "Tier", "Contact", "Status"},
					{"Acme Corp", "Gold", "ops@acme.example", "Active"},
					{"Globex", "Silver", "hello@globex.example", "Onboarding"},
					{"Initech", "Bronze", "", "Paused"},
				},
			},
			{
				Title: "Contacts",
				Rows: [][]string{
					{"Partner", "Name", "Email"},
					{"Acme Corp", "Wile E.", "wile@acme.example"},
				},
			},
		},
	}}
}
