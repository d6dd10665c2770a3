package view

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"askmynotes/pkg/domain"
	"askmynotes/services/web/internal/app"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	return r
}

func parse(t *testing.T, buf *bytes.Buffer) *html.Node {
	t.Helper()
	doc, err := html.Parse(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func byID(doc *html.Node, id string) *html.Node {
	nodes := findAll(doc, func(n *html.Node) bool {
		v, _ := attr(n, "id")
		return v == id
	})
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func hasClass(n *html.Node, class string) bool {
	v, _ := attr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func TestRenderAppEscapesUserContent(t *testing.T) {
	r := newRenderer(t)
	snap := app.Snapshot{
		User:        domain.GuestUser,
		Subjects:    []string{`<script>alert(1)</script>`},
		ChatSubject: `<script>alert(1)</script>`,
		Transcript: []domain.ChatMessage{
			{Sender: domain.SenderUser, Text: `<img src=x onerror=alert(1)>`},
		},
	}
	var buf bytes.Buffer
	if err := r.RenderApp(&buf, BuildAppPage(snap, time.Now())); err != nil {
		t.Fatalf("render: %v", err)
	}
	doc := parse(t, &buf)
	if scripts := findAll(doc, func(n *html.Node) bool { return n.Data == "script" }); len(scripts) != 0 {
		t.Fatalf("user content produced script elements")
	}
	if imgs := findAll(doc, func(n *html.Node) bool { return n.Data == "img" }); len(imgs) != 0 {
		t.Fatalf("user content produced img elements")
	}
	msgs := byID(doc, "chat-messages")
	if msgs == nil || !strings.Contains(text(msgs), "<img src=x onerror=alert(1)>") {
		t.Fatalf("message text not rendered literally")
	}
}

func TestRenderAppDisabledControlsAndRefresh(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	if err := r.RenderApp(&buf, BuildAppPage(app.Snapshot{User: domain.GuestUser, Pending: true}, time.Now())); err != nil {
		t.Fatalf("render: %v", err)
	}
	doc := parse(t, &buf)
	for _, id := range []string{"question-input", "send-btn", "generate-btn"} {
		n := byID(doc, id)
		if n == nil {
			t.Fatalf("missing #%s", id)
		}
		if _, disabled := attr(n, "disabled"); !disabled {
			t.Fatalf("#%s should be disabled", id)
		}
	}
	metas := findAll(doc, func(n *html.Node) bool {
		v, _ := attr(n, "http-equiv")
		return n.Data == "meta" && v == "refresh"
	})
	if len(metas) != 1 {
		t.Fatalf("expected one refresh meta, got %d", len(metas))
	}
	placeholder := findAll(doc, func(n *html.Node) bool { return hasClass(n, "placeholder-text") })
	if len(placeholder) != 1 || text(placeholder[0]) != "No subjects created yet. Create up to 3 subjects." {
		t.Fatalf("missing empty-subjects placeholder")
	}
}

func TestRenderAppStudyAndAnswers(t *testing.T) {
	r := newRenderer(t)
	snap := app.Snapshot{
		User:         domain.GuestUser,
		Subjects:     []string{"Math"},
		ChatSubject:  "Math",
		StudySubject: "Math",
		Transcript: []domain.ChatMessage{
			{Sender: domain.SenderBot, Answer: &domain.Answer{Text: "Not found in your notes for Math"}},
			{Sender: domain.SenderBot, Answer: &domain.Answer{Text: "Four", ConfidenceLevel: "HIGH"}},
		},
		Study: app.StudySnapshot{
			Set: &domain.StudySet{MultipleChoice: []domain.StudyQuestion{
				{Prompt: "2+2?", Options: []string{"3", "4"}, CorrectIndex: 1},
			}},
			Marks: map[int]int{0: 0},
		},
	}
	var buf bytes.Buffer
	if err := r.RenderApp(&buf, BuildAppPage(snap, time.Now())); err != nil {
		t.Fatalf("render: %v", err)
	}
	doc := parse(t, &buf)

	if n := findAll(doc, func(n *html.Node) bool { return hasClass(n, "not-found-message") }); len(n) != 1 {
		t.Fatalf("expected one not-found callout, got %d", len(n))
	}
	conf := findAll(doc, func(n *html.Node) bool { return hasClass(n, "confidence") })
	if len(conf) != 1 || !hasClass(conf[0], "high") {
		t.Fatalf("confidence badge missing lower-cased class")
	}
	options := findAll(doc, func(n *html.Node) bool { return n.Data == "button" && hasClass(n, "option") })
	if len(options) != 2 || text(options[0]) != "A. 3" || text(options[1]) != "B. 4" {
		t.Fatalf("unexpected options")
	}
	if !hasClass(options[0], "incorrect") || hasClass(options[1], "correct") {
		t.Fatalf("unexpected mark classes")
	}
	if metas := findAll(doc, func(n *html.Node) bool { return n.Data == "meta" && hasAttr(n, "http-equiv") }); len(metas) != 0 {
		t.Fatalf("idle page must not refresh")
	}
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := attr(n, key)
	return ok
}

func TestRenderLoginAndConfirm(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	if err := r.RenderLogin(&buf, LoginPage{Error: "Invalid email or password", Email: "ada@example.com", AllowGuest: false}); err != nil {
		t.Fatalf("render login: %v", err)
	}
	doc := parse(t, &buf)
	if n := byID(doc, "auth-error"); n == nil || text(n) != "Invalid email or password" {
		t.Fatalf("missing login error")
	}
	if byID(doc, "guest-form") != nil {
		t.Fatalf("guest form shown while disabled")
	}

	buf.Reset()
	err := r.RenderConfirm(&buf, ConfirmPage{
		Title:   "Delete subject",
		Message: `Are you sure you want to delete "Bio" and all its files?`,
		Action:  "/subjects/delete",
		Fields:  map[string]string{"name": "Bio"},
	})
	if err != nil {
		t.Fatalf("render confirm: %v", err)
	}
	doc = parse(t, &buf)
	hidden := map[string]string{}
	for _, n := range findAll(doc, func(n *html.Node) bool { return n.Data == "input" }) {
		name, _ := attr(n, "name")
		val, _ := attr(n, "value")
		hidden[name] = val
	}
	if hidden["name"] != "Bio" || hidden["confirm"] != "yes" {
		t.Fatalf("unexpected confirm fields %v", hidden)
	}
	if n := byID(doc, "confirm-message"); n == nil || text(n) != `Are you sure you want to delete "Bio" and all its files?` {
		t.Fatalf("unexpected confirm message")
	}
}
