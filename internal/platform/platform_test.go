package platform

import "testing"

func TestMemberStatusIsMember(t *testing.T) {
	members := []MemberStatus{StatusCreator, StatusAdministrator, StatusMember}
	for _, st := range members {
		if !st.IsMember() {
			t.Errorf("%s should count as member", st)
		}
	}
	others := []MemberStatus{StatusRestricted, StatusLeft, StatusKicked, ""}
	for _, st := range others {
		if st.IsMember() {
			t.Errorf("%q should not count as member", st)
		}
	}
}

func TestIncomingMediaItem(t *testing.T) {
	in := Incoming{Media: MediaPhoto, FileID: "AgAD", Caption: "hi"}
	item := in.MediaItem()
	if item.Kind != MediaPhoto || item.FileID != "AgAD" || item.Caption != "hi" {
		t.Fatalf("MediaItem() = %+v", item)
	}
	if got := (Incoming{Text: "plain"}).MediaItem().Kind; got != MediaOther {
		t.Fatalf("text message kind = %q, want other", got)
	}
}
