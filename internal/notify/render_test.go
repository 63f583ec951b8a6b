package notify

import (
	"strings"
	"testing"

	"github.com/parleychat/parley-server/internal/core"
	"github.com/parleychat/parley-server/internal/store"
)

func textView(sender, body string) *core.MessageView {
	return &core.MessageView{Type: store.MessageTypeText, SenderName: sender, Body: body}
}

func TestRenderBodyText(t *testing.T) {
	if got := renderBody(textView("Alice", "Hello")); got != "Alice: Hello" {
		t.Fatalf("renderBody = %q, want %q", got, "Alice: Hello")
	}
}

func TestRenderBodyStripsHTML(t *testing.T) {
	got := renderBody(textView("Alice", "<p>Hello <b>world</b> &amp; friends</p>"))
	if got != "Alice: Hello world & friends" {
		t.Fatalf("renderBody = %q", got)
	}
}

func TestRenderBodyTruncates(t *testing.T) {
	long := strings.Repeat("x", 80)
	got := renderBody(textView("Alice", long))
	want := "Alice: " + strings.Repeat("x", 50) + "…"
	if got != want {
		t.Fatalf("renderBody = %q, want %q", got, want)
	}
}

func TestRenderBodyTruncatesByRunes(t *testing.T) {
	long := strings.Repeat("ж", 60)
	got := renderBody(textView("Alice", long))
	want := "Alice: " + strings.Repeat("ж", 50) + "…"
	if got != want {
		t.Fatalf("renderBody = %q, want %q", got, want)
	}
}

func TestRenderBodyMedia(t *testing.T) {
	tests := []struct {
		name string
		view *core.MessageView
		want string
	}{
		{
			name: "with caption",
			view: &core.MessageView{Type: store.MessageTypeMedia, SenderName: "Alice", Body: "<p>Look!</p>", MediaIDs: []int64{1, 2}},
			want: "Alice: Look!",
		},
		{
			name: "count only",
			view: &core.MessageView{Type: store.MessageTypeMedia, SenderName: "Alice", MediaIDs: []int64{1, 2, 3}},
			want: "Alice shared 3 photos",
		},
		{
			name: "single photo",
			view: &core.MessageView{Type: store.MessageTypeMedia, SenderName: "Alice", MediaIDs: []int64{1}},
			want: "Alice shared 1 photo",
		},
		{
			name: "no caption no count",
			view: &core.MessageView{Type: store.MessageTypeMedia, SenderName: "Alice"},
			want: "Alice shared media",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderBody(tt.view); got != tt.want {
				t.Fatalf("renderBody = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderBodyPollAndTable(t *testing.T) {
	poll := &core.MessageView{Type: store.MessageTypePoll, SenderName: "Alice"}
	if got := renderBody(poll); got != "Alice shared a poll" {
		t.Fatalf("poll body = %q", got)
	}
	table := &core.MessageView{Type: store.MessageTypeTable, SenderName: "Alice"}
	if got := renderBody(table); got != "Alice shared a table" {
		t.Fatalf("table body = %q", got)
	}
}

func TestRenderBodyAnnouncement(t *testing.T) {
	view := &core.MessageView{
		Type:       store.MessageTypeAnnouncement,
		SenderName: "Alice",
		Body:       "Meeting Today" + announcementSeparator + "<p>Details about the meeting</p>",
	}
	got := renderBody(view)
	want := "Alice: " + announcementGlyph + " Meeting Today"
	if got != want {
		t.Fatalf("renderBody = %q, want %q", got, want)
	}
	if strings.Contains(got, "Details") {
		t.Fatal("announcement detail segment leaked into the notification")
	}
}

func TestRenderBodyAnnouncementNoSeparator(t *testing.T) {
	view := &core.MessageView{Type: store.MessageTypeAnnouncement, SenderName: "Alice", Body: "plain"}
	if got := renderBody(view); got != "Alice shared an announcement" {
		t.Fatalf("renderBody = %q", got)
	}
}
