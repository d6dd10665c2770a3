package app

import (
	"errors"
	"reflect"
	"testing"

	"askmynotes/pkg/domain"
)

func TestCreateSubjectLimits(t *testing.T) {
	a, _ := newTestApp(t, nil, nil)
	ws := guestWorkspace(t, a)

	for _, name := range []string{"Math", " Bio ", "Chem"} {
		if err := ws.CreateSubject(name); err != nil {
			t.Fatalf("create %q: %v", name, err)
		}
	}
	wantValidation(t, ws.CreateSubject("Physics"), "Maximum 3 subjects allowed")
	if got := ws.Subjects(); !reflect.DeepEqual(got, []string{"Math", "Bio", "Chem"}) {
		t.Fatalf("registry changed: %v", got)
	}

	msgs := noticeMessages(ws.Snapshot(), domain.AreaSubject)
	if len(msgs) == 0 || msgs[len(msgs)-1] != `Subject "Chem" created successfully!` {
		t.Fatalf("unexpected notices: %v", msgs)
	}
}

func TestCreateSubjectValidation(t *testing.T) {
	a, _ := newTestApp(t, nil, nil)
	ws := guestWorkspace(t, a)

	wantValidation(t, ws.CreateSubject("   "), "Please enter a subject name")
	if err := ws.CreateSubject("Bio"); err != nil {
		t.Fatalf("create: %v", err)
	}
	wantValidation(t, ws.CreateSubject("Bio"), "Subject already exists")
	if err := ws.CreateSubject("bio"); err != nil {
		t.Fatalf("names are case-sensitive: %v", err)
	}
	a.Wait()
	notes := a.notes.(*fakeNotes)
	if !reflect.DeepEqual(notes.created, []string{"Bio", "bio"}) {
		t.Fatalf("backend notified of %v", notes.created)
	}
}

func TestSubjectRegistryNeverExceedsLimit(t *testing.T) {
	a, _ := newTestApp(t, nil, nil)
	ws := guestWorkspace(t, a)
	names := []string{"a", "b", "a", "c", "", "d", "b", "e"}
	for i := 0; i < 3; i++ {
		for _, n := range names {
			_ = ws.CreateSubject(n)
			got := ws.Subjects()
			if len(got) > domain.MaxSubjects {
				t.Fatalf("registry exceeded limit: %v", got)
			}
			seen := map[string]bool{}
			for _, s := range got {
				if seen[s] {
					t.Fatalf("duplicate subject in %v", got)
				}
				seen[s] = true
			}
		}
		_ = ws.DeleteSubject("a", true)
	}
}

func TestDeleteSubjectClearsSelections(t *testing.T) {
	a, _ := newTestApp(t, nil, nil)
	ws := guestWorkspace(t, a)
	for _, n := range []string{"Math", "Bio"} {
		if err := ws.CreateSubject(n); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	_ = ws.SelectChatSubject("Bio")
	_ = ws.SelectStudySubject("Bio")
	_ = ws.SelectUploadSubject("Math")

	if err := ws.DeleteSubject("Bio", false); !errors.Is(err, domain.ErrConfirmationRequired) {
		t.Fatalf("expected confirmation required, got %v", err)
	}
	if len(ws.Subjects()) != 2 {
		t.Fatalf("unconfirmed delete must not change registry")
	}

	if err := ws.DeleteSubject("Bio", true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	snap := ws.Snapshot()
	if snap.ChatSubject != "" || snap.StudySubject != "" {
		t.Fatalf("selections not cleared: chat=%q study=%q", snap.ChatSubject, snap.StudySubject)
	}
	if snap.UploadSubject != "Math" {
		t.Fatalf("unrelated selection changed: %q", snap.UploadSubject)
	}
	if !reflect.DeepEqual(snap.Subjects, []string{"Math"}) {
		t.Fatalf("subjects = %v", snap.Subjects)
	}

	if err := ws.DeleteSubject("Nope", true); err != nil {
		t.Fatalf("unknown subject delete should be a no-op: %v", err)
	}
}

func TestDeleteOtherSubjectKeepsSelections(t *testing.T) {
	a, _ := newTestApp(t, nil, nil)
	ws := guestWorkspace(t, a)
	_ = ws.CreateSubject("Math")
	_ = ws.CreateSubject("Bio")
	_ = ws.SelectChatSubject("Math")
	_ = ws.SelectStudySubject("Math")

	if err := ws.DeleteSubject("Bio", true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	snap := ws.Snapshot()
	if snap.ChatSubject != "Math" || snap.StudySubject != "Math" {
		t.Fatalf("selections changed: %+v", snap)
	}
}

func TestSelectUnknownSubject(t *testing.T) {
	a, _ := newTestApp(t, nil, nil)
	ws := guestWorkspace(t, a)
	wantValidation(t, ws.SelectChatSubject("Ghost"), MsgSubjectNotFound)
	if err := ws.SelectChatSubject(""); err != nil {
		t.Fatalf("clearing selection: %v", err)
	}
}
