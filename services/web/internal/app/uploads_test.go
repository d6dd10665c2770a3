package app

import (
	"testing"

	"askmynotes/pkg/domain"
)

func TestUploadFilesFiltersExtensions(t *testing.T) {
	notes := &fakeNotes{}
	a, _ := newTestApp(t, notes, nil)
	ws := guestWorkspace(t, a)
	_ = ws.CreateSubject("Bio")

	wantValidation(t, ws.UploadFiles("", []FileUpload{{Name: "a.pdf"}}), "Please select a subject first")

	err := ws.UploadFiles("Bio", []FileUpload{
		{Name: "Cells.PDF", Data: []byte("pdf")},
		{Name: "notes.txt", Data: []byte("hello")},
		{Name: "essay.docx", Data: []byte("doc")},
		{Name: "README", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	snap := ws.Snapshot()
	if len(snap.Files) != 2 {
		t.Fatalf("expected 2 records, got %+v", snap.Files)
	}
	for _, f := range snap.Files {
		if f.Status != domain.FileUploading && f.Status != domain.FileSuccess {
			t.Fatalf("unexpected initial status %q", f.Status)
		}
	}
	msgs := noticeMessages(snap, domain.AreaUpload)
	want := map[string]bool{
		"Invalid file type: essay.docx. Only PDF and TXT files allowed.": false,
		"Invalid file type: README. Only PDF and TXT files allowed.":     false,
	}
	for _, m := range msgs {
		if _, ok := want[m]; ok {
			want[m] = true
		}
	}
	for m, seen := range want {
		if !seen {
			t.Fatalf("missing notice %q in %v", m, msgs)
		}
	}

	a.Wait()
	snap = ws.Snapshot()
	for _, f := range snap.Files {
		if f.Status != domain.FileSuccess {
			t.Fatalf("expected success, got %+v", f)
		}
	}
	if len(notes.uploaded) != 2 {
		t.Fatalf("backend saw %v", notes.uploaded)
	}
	if snap.UploadSubject != "Bio" {
		t.Fatalf("upload selection = %q", snap.UploadSubject)
	}
}

func TestUploadFailureAndRemove(t *testing.T) {
	notes := &fakeNotes{uploadErr: map[string]error{
		"bad.pdf": &domain.ServerError{Status: 500, Message: "Upload failed: 500 Internal Server Error"},
	}}
	a, _ := newTestApp(t, notes, nil)
	ws := guestWorkspace(t, a)
	_ = ws.CreateSubject("Bio")

	if err := ws.UploadFiles("Bio", []FileUpload{{Name: "bad.pdf"}, {Name: "good.txt"}}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	a.Wait()

	snap := ws.Snapshot()
	var bad, good domain.UploadedFile
	for _, f := range snap.Files {
		switch f.Name {
		case "bad.pdf":
			bad = f
		case "good.txt":
			good = f
		}
	}
	if bad.Status != domain.FileError || bad.Error != "Upload failed: 500 Internal Server Error" {
		t.Fatalf("unexpected failed record: %+v", bad)
	}
	if good.Status != domain.FileSuccess {
		t.Fatalf("unexpected good record: %+v", good)
	}
	msgs := noticeMessages(snap, domain.AreaUpload)
	found := false
	for _, m := range msgs {
		if m == `Failed to upload "bad.pdf": Upload failed: 500 Internal Server Error` {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing failure notice in %v", msgs)
	}

	wantValidation(t, ws.RemoveFile("Bio", good.ID), MsgOnlyFailedRemovable)
	if err := ws.RemoveFile("Bio", "missing"); err != nil {
		t.Fatalf("unknown id should be a no-op: %v", err)
	}
	if err := ws.RemoveFile("Bio", bad.ID); err != nil {
		t.Fatalf("remove failed file: %v", err)
	}
	if files := ws.Snapshot().Files; len(files) != 1 || files[0].ID != good.ID {
		t.Fatalf("unexpected files after remove: %+v", files)
	}
}

func TestUploadTooLarge(t *testing.T) {
	a, _ := newTestApp(t, nil, nil)
	ws := guestWorkspace(t, a)
	_ = ws.CreateSubject("Bio")
	big := make([]byte, (1<<20)+1)
	if err := ws.UploadFiles("Bio", []FileUpload{{Name: "huge.pdf", Data: big}}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	snap := ws.Snapshot()
	if len(snap.Files) != 0 {
		t.Fatalf("oversized file must not be recorded: %+v", snap.Files)
	}
	if msgs := noticeMessages(snap, domain.AreaUpload); len(msgs) != 1 || msgs[0] != "File too large: huge.pdf." {
		t.Fatalf("unexpected notices: %v", msgs)
	}
}

func TestUploadResultDiscardedAfterSubjectDeleted(t *testing.T) {
	notes := &fakeNotes{gate: make(chan struct{})}
	a, _ := newTestApp(t, notes, nil)
	ws := guestWorkspace(t, a)
	_ = ws.CreateSubject("Bio")
	if err := ws.UploadFiles("Bio", []FileUpload{{Name: "a.pdf"}}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !ws.Snapshot().Pending {
		t.Fatalf("expected pending while upload in flight")
	}
	if err := ws.DeleteSubject("Bio", true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	a.Wait()

	_ = ws.CreateSubject("Bio")
	snap := ws.Snapshot()
	if len(snap.Files) != 0 || snap.Pending {
		t.Fatalf("stale upload leaked into recreated subject: %+v", snap)
	}
	for _, m := range noticeMessages(snap, domain.AreaUpload) {
		t.Fatalf("unexpected upload notice after delete: %q", m)
	}
}

func TestFinishUploadNeverReverses(t *testing.T) {
	a, _ := newTestApp(t, nil, nil)
	ws := guestWorkspace(t, a)
	_ = ws.CreateSubject("Bio")
	if err := ws.UploadFiles("Bio", []FileUpload{{Name: "a.pdf"}}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	a.Wait()
	id := ws.Snapshot().Files[0].ID

	ws.finishUpload("Bio", id, &domain.ServerError{Status: 500, Message: "late"})
	if f := ws.Snapshot().Files[0]; f.Status != domain.FileSuccess {
		t.Fatalf("status reversed to %q", f.Status)
	}
}
