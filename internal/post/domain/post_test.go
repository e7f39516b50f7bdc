package domain

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestNew_Defaults(t *testing.T) {
	p := New("p1", "u1", "Hello", "", "", t0)
	if p.Status != PostStatusDraft {
		t.Errorf("Status = %q, want draft", p.Status)
	}
	if p.PublishedAt != nil {
		t.Errorf("PublishedAt = %v, want nil for a draft", p.PublishedAt)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	pub := New("p2", "u1", "Hello", "", PostStatusPublished, t0)
	if pub.PublishedAt == nil || !pub.PublishedAt.Equal(t0) {
		t.Errorf("PublishedAt = %v, want %v", pub.PublishedAt, t0)
	}
}

func TestPost_Validate(t *testing.T) {
	testCases := []struct {
		name string
		post Post
	}{
		{"no id", Post{AuthorID: "u1", Title: "t", Status: PostStatusDraft}},
		{"no author", Post{ID: "p1", Title: "t", Status: PostStatusDraft}},
		{"no title", Post{ID: "p1", AuthorID: "u1", Status: PostStatusDraft}},
		{"bad status", Post{ID: "p1", AuthorID: "u1", Title: "t", Status: "deleted"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.post.Validate(); err == nil {
				t.Error("Validate should fail")
			}
		})
	}
}

func TestPost_Apply_StampsPublishedOnce(t *testing.T) {
	p := New("p1", "u1", "Hello", "", PostStatusDraft, t0)
	published := PostStatusPublished
	archived := PostStatusArchived
	t1 := t0.Add(time.Hour)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	p.Apply(Patch{Status: &published}, t1)
	if p.PublishedAt == nil || !p.PublishedAt.Equal(t1) {
		t.Fatalf("PublishedAt = %v, want %v", p.PublishedAt, t1)
	}

	p.Apply(Patch{Status: &archived}, t2)
	p.Apply(Patch{Status: &published}, t3)
	if !p.PublishedAt.Equal(t1) {
		t.Errorf("PublishedAt = %v, want first publication %v", p.PublishedAt, t1)
	}
	if !p.UpdatedAt.Equal(t3) || !p.CreatedAt.Equal(t0) {
		t.Errorf("timestamps created=%v updated=%v", p.CreatedAt, p.UpdatedAt)
	}
}

func TestPost_Apply_Fields(t *testing.T) {
	p := New("p1", "u1", "Hello", "body", PostStatusDraft, t0)
	title := "New"

	p.Apply(Patch{Title: &title}, t0.Add(time.Minute))

	if p.Title != "New" || p.Body != "body" || p.Status != PostStatusDraft {
		t.Errorf("post = %+v", p)
	}
	if (Patch{}).Empty() != true || (Patch{Title: &title}).Empty() {
		t.Error("Empty mismatch")
	}
}

func TestListQuery_Normalize(t *testing.T) {
	testCases := []struct {
		in, want ListQuery
	}{
		{ListQuery{}, ListQuery{Limit: DefaultListLimit}},
		{ListQuery{Limit: 5, Offset: 10}, ListQuery{Limit: 5, Offset: 10}},
		{ListQuery{Limit: 500}, ListQuery{Limit: MaxListLimit}},
		{ListQuery{Limit: -1, Offset: -3}, ListQuery{Limit: DefaultListLimit}},
	}
	for _, tc := range testCases {
		if got := tc.in.Normalize(); got != tc.want {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestPostStatus_Valid(t *testing.T) {
	for _, s := range []PostStatus{PostStatusDraft, PostStatusPublished, PostStatusArchived} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if PostStatus("deleted").Valid() || PostStatus("").Valid() {
		t.Error("unknown statuses should be invalid")
	}
}
