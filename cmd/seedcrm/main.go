package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"

	"github.com/poiesic/verbatim/extract"
)

type sample struct {
	table       string
	name        string
	description string
	parent      string
	parentType  string
}

var samples = []sample{
	{"meetings", "Quarterly review", "Walked through the renewal terms and the new pricing sheet.", "acme", "Accounts"},
	{"meetings", "Onboarding kickoff", "Agreed on a rollout plan for the support team.", "acme", "Accounts"},
	{"meetings", "Security review", "They asked for our SOC 2 report before signing.", "globex", "Accounts"},
	{"meetings", "", "Demo of the reporting module, positive reaction to dashboards.", "initech", "Accounts"},
	{"calls", "Pricing follow-up", "Customer says the price is too high compared to a competitor.", "acme", "Accounts"},
	{"calls", "Intro call", "Inbound lead interested in pricing for 50 seats.", "lead-101", "Leads"},
	{"calls", "Support escalation", "Outage last week, they want a credit on the next invoice.", "globex", "Accounts"},
	{"calls", "Check-in", "Nothing new, will call back next month.", "initech", "Accounts"},
	{"notes", "Contract note", "Legal is reviewing the data processing addendum.", "globex", "Accounts"},
	{"notes", "Competitor mention", "They are also evaluating a cheaper competitor.", "lead-101", "Leads"},
	{"notes", "Budget", "Budget approved for Q3, discount requested on renewal.", "acme", "Accounts"},
	{"notes", "Lunch", "Team lunch with the account manager.", "initech", "Accounts"},
}

var (
	fixtureFile = flag.String("src", "", "JSON fixture of CRM rows (default: built-in sample)")
	outFile     = flag.String("out", "crm.sqlite", "SQLite database to create")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// sampleFixture builds a fixture from the built-in sample rows.
func sampleFixture() *extract.Fixture {
	f := &extract.Fixture{}
	for i, s := range samples {
		row := extract.FixtureRow{
			ID:          fmt.Sprintf("%s-%03d", s.table, i+1),
			Description: &s.description,
			ParentID:    &s.parent,
			ParentType:  &s.parentType,
		}
		if s.name != "" {
			row.Name = &s.name
		}
		switch s.table {
		case "meetings":
			f.Meetings = append(f.Meetings, row)
		case "calls":
			f.Calls = append(f.Calls, row)
		case "notes":
			f.Notes = append(f.Notes, row)
		}
	}
	return f
}

func main() {
	fixture := sampleFixture()
	if *fixtureFile != "" {
		var err error
		fixture, err = extract.LoadFixture(*fixtureFile)
		if err != nil {
			panic(err)
		}
	}

	db, err := sql.Open("sqlite", *outFile)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	if err := extract.SeedFixture(context.Background(), db, fixture); err != nil {
		panic(err)
	}

	slog.Info("seeded CRM",
		"path", *outFile,
		"meetings", len(fixture.Meetings),
		"calls", len(fixture.Calls),
		"notes", len(fixture.Notes))
}
