package urlutil

import "testing"

func TestValidate(t *testing.T) {
	valid := []string{
		"http://example.com",
		"https://example.com/path",
	}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Fatalf("expected valid, got error: %v", err)
		}
	}

	invalid := []string{"ftp://example.com", "//example.com", "http:///"}
	for _, u := range invalid {
		if err := ValidateURL(u); err == nil {
			t.Fatalf("expected invalid for %s", u)
		}
	}
}

func TestResolveURL(t *testing.T) {
	got := ResolveURL("https://www.asos.com/women/cat/?cid=1", "/asos-design/top/prd/123")
	if got != "https://www.asos.com/asos-design/top/prd/123" {
		t.Fatalf("unexpected resolved url %q", got)
	}
	if got := ResolveURL("https://www.asos.com/", "https://other.example/x"); got != "https://other.example/x" {
		t.Fatalf("absolute href should be unchanged, got %q", got)
	}
}

func TestSearchURL(t *testing.T) {
	got := SearchURL("https://www.asos.com/", "black dress")
	if got != "https://www.asos.com/search/?q=black+dress" {
		t.Fatalf("unexpected search url %q", got)
	}
}

func TestProductID(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"https://www.asos.com/asos-design/tee/prd/204512345#colourWayId=1", 204512345},
		{"https://www.asos.com/asos-design/tee/prd/77?clr=black", 77},
		{"https://www.asos.com/women/cat/?cid=4169", 0},
	}
	for _, tt := range tests {
		if got := ProductID(tt.in); got != tt.want {
			t.Errorf("ProductID(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestUniqueAndStrip(t *testing.T) {
	in := []string{"a", "b", "a", "c", "b"}
	got := Unique(in)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected unique result %v", got)
	}
	if s := StripQuery("https://x/y?z=1#f"); s != "https://x/y" {
		t.Fatalf("unexpected stripped url %q", s)
	}
	if seg := FirstPathSegment("https://www.asos.com/nike/nike-tee/prd/1"); seg != "nike" {
		t.Fatalf("unexpected first segment %q", seg)
	}
}
