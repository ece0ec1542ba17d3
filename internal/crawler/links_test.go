package crawler

import (
	"reflect"
	"testing"
)

// --- LinkFilter Tests ---

func TestNewLinkFilter_ValidPattern(t *testing.T) {
	lf, err := NewLinkFilter(true, `/product/\d+`)
	if err != nil {
		t.Fatalf("NewLinkFilter() error = %v", err)
	}

	if !lf.SameHostOnly {
		t.Error("expected SameHostOnly to be set")
	}
	if lf.URLPattern == nil {
		t.Error("expected URLPattern to be set")
	}
}

func TestNewLinkFilter_InvalidPattern(t *testing.T) {
	_, err := NewLinkFilter(false, "[invalid")
	if err == nil {
		t.Error("expected error for invalid regex pattern")
	}
}

func TestNewLinkFilter_EmptyPattern(t *testing.T) {
	lf, err := NewLinkFilter(false, "")
	if err != nil {
		t.Fatalf("NewLinkFilter() error = %v", err)
	}

	if lf.URLPattern != nil {
		t.Error("expected URLPattern to be nil for empty pattern")
	}
}

func TestLinkFilter_Filter_SchemeAllowList(t *testing.T) {
	lf, _ := NewLinkFilter(false, "")

	links := lf.Filter("https://example.com/", []string{
		"https://example.com/a",
		"http://example.com/b",
		"mailto:sales@example.com",
		"tel:+15551234567",
		"javascript:void(0)",
		"ftp://example.com/file",
		"/relative/path",
		"//example.com/protocol-relative",
		"",
		"   ",
	})

	want := []string{"https://example.com/a", "http://example.com/b"}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("Filter() = %v, want %v", links, want)
	}
}

func TestLinkFilter_Filter_Fragments(t *testing.T) {
	lf, _ := NewLinkFilter(false, "")

	links := lf.Filter("https://example.com/page", []string{
		"https://example.com/page#section",
		"https://example.com/page/#top",
		"https://example.com/page#",
		"https://example.com/other#section",
	})

	// Same-page anchors go; anchors to other pages lose the fragment
	want := []string{"https://example.com/other"}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("Filter() = %v, want %v", links, want)
	}
}

func TestLinkFilter_Filter_Deduplicates(t *testing.T) {
	lf, _ := NewLinkFilter(false, "")

	links := lf.Filter("https://example.com/", []string{
		"https://example.com/page",
		"https://example.com/page/",
		"https://example.com/page#x",
		"https://EXAMPLE.com/page",
		"https://example.com/next",
	})

	want := []string{"https://example.com/page", "https://example.com/next"}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("Filter() = %v, want %v", links, want)
	}
}

func TestLinkFilter_Filter_SameHostOnly(t *testing.T) {
	lf, _ := NewLinkFilter(true, "")

	links := lf.Filter("https://example.com/", []string{
		"https://example.com/a",
		"https://other.example/b",
		"https://sub.example.com/c",
	})

	want := []string{"https://example.com/a"}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("Filter() = %v, want %v", links, want)
	}
}

func TestLinkFilter_Filter_URLPattern(t *testing.T) {
	lf, _ := NewLinkFilter(false, `/product/\d+$`)

	links := lf.Filter("https://example.com/", []string{
		"https://example.com/product/1",
		"https://example.com/product/2#reviews",
		"https://example.com/product/new",
		"https://example.com/about",
	})

	want := []string{"https://example.com/product/1", "https://example.com/product/2"}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("Filter() = %v, want %v", links, want)
	}
}

func TestLinkFilter_Filter_KeepsOrder(t *testing.T) {
	lf, _ := NewLinkFilter(false, "")

	in := []string{
		"https://example.com/c",
		"https://example.com/a",
		"https://example.com/b",
	}
	if got := lf.Filter("https://example.com/", in); !reflect.DeepEqual(got, in) {
		t.Errorf("Filter() = %v, want %v", got, in)
	}
}
