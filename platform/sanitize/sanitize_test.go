package sanitize

import "testing"

func TestText(t *testing.T) {
	cases := map[string]string{
		"1 Main St":                         "1 Main St",
		"  Boston ":                         "  Boston ",
		"<b>Boston</b>":                     "Boston",
		"&lt;script&gt;x&lt;/script&gt;Bos": "xBos",
		"Bos\tton\x00":                      "Bos ton",
		"":                                  "",
	}
	for in, want := range cases {
		if got := Text(in); got != want {
			t.Errorf("Text(%q) = %q, want %q", in, got, want)
		}
	}
}
