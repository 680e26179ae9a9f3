package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	a := Sum([]byte(`[{"id":1,"text":"a"}]`))
	if a != Sum([]byte(`[{"id":1,"text":"a"}]`)) {
		t.Error("same bucket should give the same sum")
	}
	if a == Sum([]byte(`[{"id":1,"text":"b"}]`)) {
		t.Error("different buckets should differ")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
}

func TestMatches(t *testing.T) {
	etag := ETag([]byte("[]"))
	cases := []struct {
		header string
		want   bool
	}{
		{"", false},
		{etag, true},
		{"W/" + etag, true},
		{`"other", ` + etag, true},
		{"*", true},
		{`"other"`, false},
	}
	for _, tc := range cases {
		if got := Matches(tc.header, etag); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}
