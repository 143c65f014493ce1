package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"buildea/api/internal/store"
)

func TestTextToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "  ", expected: ""},
		{name: "single paragraph", input: "Hello world", expected: "<p>Hello world</p>"},
		{name: "line breaks", input: "one\ntwo", expected: "<p>one<br>two</p>"},
		{name: "paragraphs", input: "one\n\ntwo", expected: "<p>one</p><p>two</p>"},
		{name: "bullet list", input: "- a\n- b", expected: "<ul><li>a</li><li>b</li></ul>"},
		{name: "japanese bullets", input: "・準備\n・告知", expected: "<ul><li>準備</li><li>告知</li></ul>"},
		{name: "mixed block stays paragraph", input: "- a\nb", expected: "<p>- a<br>b</p>"},
		{name: "escapes markup", input: "<script>x</script>", expected: "<p>&lt;script&gt;x&lt;/script&gt;</p>"},
		{name: "windows newlines", input: "a\r\n\r\nb", expected: "<p>a</p><p>b</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(TextToHTML(tt.input)); got != tt.expected {
				t.Errorf("TextToHTML() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"Demo Day v1.2", "Demo-Day-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"夏祭り　報告", "夏祭り-報告"},
		{"", "report"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"あ", "%E3%81%82"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderReportHTML(t *testing.T) {
	data := ReportData{
		Event: store.Event{
			ID:               "evt_1",
			Title:            "Night Market",
			Description:      "Campus food stalls",
			Date:             time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			ParticipantCount: 42,
			Content:          "- Sold out by 8pm\n- Great feedback",
			NextActions:      "Book a bigger venue",
		},
		Theme:       &store.Theme{Title: "Food"},
		Idea:        &store.Idea{Title: "Student market", Description: "Let students sell food"},
		GeneratedAt: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		t.Fatalf("RenderReportHTML() error = %v", err)
	}

	for _, want := range []string{
		"Night Market",
		"2024-06-01",
		"42 participants",
		"Theme: Food",
		"Student market",
		"<li>Sold out by 8pm</li>",
		"<p>Book a bigger venue</p>",
		"generated 2024-06-02",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(html, "&lt;li&gt;") {
		t.Error("rich text was escaped twice")
	}
}

func TestRenderReportHTMLWithoutLinks(t *testing.T) {
	html, err := RenderReportHTML(ReportData{Event: store.Event{Title: "Solo"}})
	if err != nil {
		t.Fatalf("RenderReportHTML() error = %v", err)
	}
	if strings.Contains(html, "Original idea") || strings.Contains(html, "Theme:") {
		t.Error("HTML should omit idea and theme sections")
	}
}

type fakeStore struct {
	events    map[string]store.Event
	themes    map[string]store.Theme
	ideas     map[string]store.Idea
	reportKey map[string]string
}

func (f *fakeStore) GetEvent(_ context.Context, id string) (store.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return store.Event{}, store.ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) GetTheme(_ context.Context, id string) (store.Theme, error) {
	th, ok := f.themes[id]
	if !ok {
		return store.Theme{}, store.ErrNotFound
	}
	return th, nil
}

func (f *fakeStore) GetIdea(_ context.Context, id string) (store.Idea, error) {
	i, ok := f.ideas[id]
	if !ok {
		return store.Idea{}, store.ErrNotFound
	}
	return i, nil
}

func (f *fakeStore) SetEventReport(_ context.Context, id, key string) error {
	f.reportKey[id] = key
	return nil
}

type fakeUploader struct {
	objects map[string][]byte
}

func (u *fakeUploader) Put(_ context.Context, key, _ string, data []byte) error {
	u.objects[key] = data
	return nil
}

func (u *fakeUploader) PresignedURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://blob.example/" + key, nil
}

func newTestExportService(uploader Uploader) (*Service, *fakeStore) {
	missingTheme := "thm_gone"
	ideaID := "idea_1"
	fs := &fakeStore{
		events: map[string]store.Event{
			"evt_1": {ID: "evt_1", Title: "Demo Day", ThemeID: &missingTheme, IdeaID: &ideaID},
		},
		themes:    map[string]store.Theme{},
		ideas:     map[string]store.Idea{"idea_1": {ID: "idea_1", Title: "Hack night"}},
		reportKey: map[string]string{},
	}
	svc := NewService(fs, uploader)
	svc.now = func() time.Time { return time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC) }
	svc.pdf = func(_ context.Context, html, title string) (*Result, error) {
		return &Result{Data: []byte(html), Filename: sanitizeFilename(title) + ".pdf", MimeType: "application/pdf"}, nil
	}
	svc.docx = func(context.Context, string, string) (*Result, error) {
		return nil, ErrDOCXDependencyMissing
	}
	return svc, fs
}

func TestExportUploadsAndRecordsKey(t *testing.T) {
	up := &fakeUploader{objects: map[string][]byte{}}
	svc, fs := newTestExportService(up)

	res, err := svc.Export(context.Background(), Request{EventID: "evt_1", Format: FormatPDF, Upload: true})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	wantKey := "reports/evt_1/20240701T100000Z.pdf"
	if res.Key != wantKey || fs.reportKey["evt_1"] != wantKey {
		t.Fatalf("report key = %q / %q, want %q", res.Key, fs.reportKey["evt_1"], wantKey)
	}
	if res.URL != "https://blob.example/"+wantKey {
		t.Errorf("URL = %q", res.URL)
	}
	if !strings.Contains(string(up.objects[wantKey]), "Hack night") {
		t.Error("uploaded report should include the linked idea")
	}
	if res.Filename != "Demo-Day.pdf" {
		t.Errorf("Filename = %q", res.Filename)
	}
}

func TestExportWithoutUploader(t *testing.T) {
	svc, fs := newTestExportService(nil)
	res, err := svc.Export(context.Background(), Request{EventID: "evt_1", Format: FormatPDF, Upload: true})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.URL != "" || len(fs.reportKey) != 0 {
		t.Fatal("nothing should be uploaded without object storage")
	}
	if svc.CanUpload() {
		t.Fatal("CanUpload() = true without uploader")
	}
}

func TestExportErrors(t *testing.T) {
	svc, _ := newTestExportService(nil)
	ctx := context.Background()

	if _, err := svc.Export(ctx, Request{EventID: "evt_1", Format: "odt"}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Export(odt) error = %v", err)
	}
	if _, err := svc.Export(ctx, Request{EventID: "missing", Format: FormatPDF}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Export(missing) error = %v", err)
	}
	if _, err := svc.Export(ctx, Request{EventID: "evt_1", Format: FormatDOCX}); !errors.Is(err, ErrDOCXDependencyMissing) {
		t.Errorf("Export(docx) error = %v", err)
	}
}
