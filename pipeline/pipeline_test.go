package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/use-agent/pinharvest/models"
)

func pinRecord(id string) *models.Record {
	rec := models.NewRecord(models.TypePin)
	rec.Set("pin_id", id)
	rec.Set("title", "Modern kitchen ideas")
	rec.Set("image_url", "https://i.pinimg.com/736x/ab/cd/ef.jpg")
	return rec
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name      string
		rec       *models.Record
		wantField string
	}{
		{
			name: "pin missing title",
			rec: func() *models.Record {
				r := pinRecord("123")
				r.Set("title", "")
				return r
			}(),
			wantField: "title",
		},
		{
			name: "pin missing image_url",
			rec: func() *models.Record {
				r := pinRecord("123")
				delete(r.Fields, "image_url")
				return r
			}(),
			wantField: "image_url",
		},
		{
			name: "board missing board_id",
			rec: func() *models.Record {
				r := models.NewRecord(models.TypeBoard)
				r.Set("board_name", "Dream Homes")
				return r
			}(),
			wantField: "board_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rec)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("error %q does not name field %q", err, tt.wantField)
			}
			if !IsValidationError(err) {
				t.Errorf("error %q not classified as validation error", err)
			}
		})
	}
}

func TestValidateUnknownType(t *testing.T) {
	rec := &models.Record{Type: "gallery", Fields: map[string]any{}}
	if err := Validate(rec); err == nil {
		t.Fatal("expected error for unknown record type")
	}
}

func TestValidateSanitizesInPlace(t *testing.T) {
	rec := pinRecord("123")
	rec.Set("pin_url", "not-a-url")
	rec.Set("pin_likes", "12K")
	rec.Set("pinner_follower_count", "3.5M")

	if err := Validate(rec); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := rec.String("pin_url"); got != "" {
		t.Errorf("malformed pin_url not reset, got %q", got)
	}
	if got := rec.Int("pin_likes"); got != 12000 {
		t.Errorf("pin_likes = %d, want 12000", got)
	}
	if got := rec.Int("pinner_follower_count"); got != 3500000 {
		t.Errorf("pinner_follower_count = %d, want 3500000", got)
	}
}

func TestValidateCleansHandles(t *testing.T) {
	rec := models.NewRecord(models.TypeUser)
	rec.Set("user_id", "u1")
	rec.Set("username", " @designlover ")

	if err := Validate(rec); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := rec.String("username"); got != "designlover" {
		t.Errorf("username = %q, want %q", got, "designlover")
	}
}

func TestValidateAcceptsGoodURLs(t *testing.T) {
	urls := []string{
		"https://www.pinterest.com/pin/123456/",
		"http://localhost:8080/pin/1/",
		"https://i.pinimg.com/736x/ab/cd/ef.jpg",
	}
	for _, u := range urls {
		rec := pinRecord("123")
		rec.Set("pin_url", u)
		if err := Validate(rec); err != nil {
			t.Fatalf("Validate(%q): %v", u, err)
		}
		if rec.String("pin_url") != u {
			t.Errorf("valid URL %q was reset", u)
		}
	}
}

func TestAdmitDropsExactDuplicates(t *testing.T) {
	state := NewState()

	if !state.admit(pinRecord("111"), 0) {
		t.Fatal("first record rejected")
	}
	if state.admit(pinRecord("111"), 0) {
		t.Fatal("duplicate identity key admitted")
	}
	if !state.admit(pinRecord("222"), 0) {
		t.Fatal("distinct record rejected")
	}

	stats := state.Stats()
	if stats.Kept != 2 || stats.Duplicates != 1 {
		t.Errorf("stats = kept %d dups %d, want 2/1", stats.Kept, stats.Duplicates)
	}
}

func TestAdmitSearchResultCompositeKey(t *testing.T) {
	state := NewState()
	mk := func(query, id string) *models.Record {
		r := models.NewRecord(models.TypeSearchResult)
		r.Set("search_query", query)
		r.Set("result_id", id)
		r.Set("result_type", "pins")
		return r
	}

	if !state.admit(mk("kitchen", "1"), 0) {
		t.Fatal("first result rejected")
	}
	// Same result ID under a different query is a distinct record.
	if !state.admit(mk("bathroom", "1"), 0) {
		t.Fatal("same id under new query rejected")
	}
	if state.admit(mk("kitchen", "1"), 0) {
		t.Fatal("same query+id pair admitted twice")
	}
}

func TestAdmitNearDuplicateIsAdvisoryOnly(t *testing.T) {
	state := NewState()

	a := pinRecord("111")
	a.Set("description", "cozy scandinavian living room with plants and light wood")
	b := pinRecord("222")
	b.Set("description", "cozy scandinavian living room with plants and light wood")

	if !state.admit(a, 3) {
		t.Fatal("first record rejected")
	}
	// Identical content under a fresh ID must still be admitted.
	if !state.admit(b, 3) {
		t.Fatal("near-duplicate was dropped, want advisory only")
	}
}

func TestEnrichPinEngagementRate(t *testing.T) {
	rec := pinRecord("123")
	rec.Set("pin_likes", 30)
	rec.Set("pin_comments", 10)
	rec.Set("pin_repins", 10)
	rec.Set("pinner_follower_count", 1000)

	Enrich(rec)
	if got := rec.Fields["engagement_rate"]; got != 5.0 {
		t.Errorf("engagement_rate = %v, want 5", got)
	}
}

func TestEnrichPinZeroFollowers(t *testing.T) {
	rec := pinRecord("123")
	rec.Set("pin_likes", 500)

	Enrich(rec)
	if got := rec.Fields["engagement_rate"]; got != 0 {
		t.Errorf("engagement_rate = %v, want 0 when followers absent", got)
	}
}

func TestEnrichUserAvgPinsPerBoard(t *testing.T) {
	rec := models.NewRecord(models.TypeUser)
	rec.Set("user_id", "u1")
	rec.Set("username", "maker")
	rec.Set("pin_count", 100)
	rec.Set("board_count", 7)

	Enrich(rec)
	if got := rec.Fields["avg_pins_per_board"]; got != 14.3 {
		t.Errorf("avg_pins_per_board = %v, want 14.3", got)
	}

	noBoards := models.NewRecord(models.TypeUser)
	noBoards.Set("user_id", "u2")
	noBoards.Set("username", "lurker")
	Enrich(noBoards)
	if _, ok := noBoards.Get("avg_pins_per_board"); ok {
		t.Error("avg_pins_per_board set despite zero boards")
	}
}

func TestEnrichStampsScrapedAt(t *testing.T) {
	rec := pinRecord("123")
	Enrich(rec)
	if rec.Empty("scraped_at") {
		t.Error("scraped_at not stamped")
	}

	rec2 := pinRecord("123")
	rec2.Set("scraped_at", "2026-01-02T15:04:05Z")
	Enrich(rec2)
	if got := rec2.String("scraped_at"); got != "2026-01-02T15:04:05Z" {
		t.Errorf("existing scraped_at overwritten: %q", got)
	}
}

func TestFlattenValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string trimmed", "  hello  ", "hello"},
		{"int", 42, "42"},
		{"float whole", 5.0, "5"},
		{"float fraction", 14.3, "14.3"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"list joined", []string{"a", "", "b"}, "a, b"},
		{"empty list", []string{}, ""},
		{"nil", nil, ""},
		{"map compact json", map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flattenValue(tt.in); got != tt.want {
				t.Errorf("flattenValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFlattenDropsUninformativeFields(t *testing.T) {
	rec := models.NewRecord(models.TypePin)
	rec.Set("pin_id", "")
	rec.Set("pin_likes", 0)
	rec.Set("title", "x")
	rec.Set("is_shoppable", false)
	rec.Set("tags", []string{})

	row := flatten(rec)
	if len(row.Fields) != 1 || row.Fields[0] != "title" {
		t.Fatalf("fields = %v, want [title]", row.Fields)
	}
	if row.Cells[0] != "x" {
		t.Errorf("cell = %q, want %q", row.Cells[0], "x")
	}
}

func TestFlattenFollowsSchemaOrder(t *testing.T) {
	rec := pinRecord("123")
	rec.Set("tags", []string{"home", "decor"})

	row := flatten(rec)
	want := []string{"pin_id", "title", "image_url", "tags"}
	if len(row.Fields) != len(want) {
		t.Fatalf("fields = %v, want %v", row.Fields, want)
	}
	for i := range want {
		if row.Fields[i] != want[i] {
			t.Fatalf("fields = %v, want %v", row.Fields, want)
		}
	}
}

func readCSV(t *testing.T, dir string, typ models.RecordType) [][]string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "pinterest_"+string(typ)+"_*.csv"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one %s export file, got %v (err %v)", typ, matches, err)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestPipelineHeaderFollowsFirstRecord(t *testing.T) {
	dir := t.TempDir()
	p := New(Config{OutputDir: dir}, nil)
	if err := p.Open("run-1"); err != nil {
		t.Fatal(err)
	}

	first := models.NewRecord(models.TypeTrend)
	first.Set("trend_name", "cottagecore")
	first.Set("trend_id", "trend_1_cottagecore")
	if _, err := p.Process(first); err != nil {
		t.Fatal(err)
	}

	// Second record carries a field the header never saw.
	second := models.NewRecord(models.TypeTrend)
	second.Set("trend_name", "grandmillennial")
	second.Set("trend_id", "trend_2_grandmillennial")
	second.Set("trending_region", "US")
	if _, err := p.Process(second); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, dir, models.TypeTrend)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	// Enrichment stamps scraped_at, so the first record exports three
	// fields and locks a three-column header.
	header := rows[0]
	want := []string{"trend_id", "trend_name", "scraped_at"}
	if len(header) != 3 || header[0] != want[0] || header[1] != want[1] || header[2] != want[2] {
		t.Fatalf("header = %v, want %v", header, want)
	}
	// The second data row is ragged: four cells against the
	// three-column header, positionally in schema order, with
	// trending_region landing under the scraped_at column.
	if len(rows[2]) != 4 || rows[2][2] != "US" {
		t.Fatalf("second row = %v, want third positional cell US", rows[2])
	}
}

func TestPipelineStrictHeaders(t *testing.T) {
	dir := t.TempDir()
	p := New(Config{OutputDir: dir, StrictHeaders: true}, nil)
	if err := p.Open("run-1"); err != nil {
		t.Fatal(err)
	}

	first := models.NewRecord(models.TypeTrend)
	first.Set("trend_name", "cottagecore")
	first.Set("trend_id", "trend_1_cottagecore")
	first.Set("trending_region", "US")
	if _, err := p.Process(first); err != nil {
		t.Fatal(err)
	}

	second := models.NewRecord(models.TypeTrend)
	second.Set("trend_name", "grandmillennial")
	second.Set("trend_id", "trend_2_grandmillennial")
	if _, err := p.Process(second); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, dir, models.TypeTrend)
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			t.Fatalf("row %d has %d cells, header has %d", i, len(row), len(rows[0]))
		}
	}
	// trending_region column exists and is empty for the second record.
	region := -1
	for i, f := range rows[0] {
		if f == "trending_region" {
			region = i
		}
	}
	if region < 0 {
		t.Fatalf("header %v missing trending_region", rows[0])
	}
	if rows[1][region] != "US" || rows[2][region] != "" {
		t.Errorf("region cells = %q/%q, want US/empty", rows[1][region], rows[2][region])
	}
}

func TestPipelineDropsDuplicatesAndCounts(t *testing.T) {
	dir := t.TempDir()
	p := New(Config{OutputDir: dir}, nil)
	if err := p.Open("run-1"); err != nil {
		t.Fatal(err)
	}

	if kept, err := p.Process(pinRecord("1")); err != nil || kept == nil {
		t.Fatalf("first record: kept=%v err=%v", kept, err)
	}
	if kept, err := p.Process(pinRecord("1")); err != nil || kept != nil {
		t.Fatalf("duplicate: kept=%v err=%v, want nil/nil", kept, err)
	}
	if _, err := p.Process(pinRecord("2")); err != nil {
		t.Fatal(err)
	}

	bad := models.NewRecord(models.TypePin)
	bad.Set("pin_id", "3")
	if _, err := p.Process(bad); !IsValidationError(err) {
		t.Fatalf("invalid record error = %v, want validation error", err)
	}

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	stats := p.Stats()
	if stats.Kept != 2 || stats.Duplicates != 1 {
		t.Errorf("stats = %+v, want kept 2 dups 1", stats)
	}
	if stats.PerType[models.TypePin] != 2 {
		t.Errorf("per-type pin count = %d, want 2", stats.PerType[models.TypePin])
	}

	rows := readCSV(t, dir, models.TypePin)
	if len(rows) != 3 {
		t.Errorf("exported rows = %d, want header + 2", len(rows))
	}
}

func TestPipelineLazyChannels(t *testing.T) {
	dir := t.TempDir()
	p := New(Config{OutputDir: dir}, nil)
	if err := p.Open("run-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Process(pinRecord("1")); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	boards, _ := filepath.Glob(filepath.Join(dir, "pinterest_board_*.csv"))
	if len(boards) != 0 {
		t.Errorf("board export created with no board records: %v", boards)
	}
}
