package faq

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  string
	}{
		{name: "trims whitespace", in: "  Hello   World  ", out: "hello world"},
		{name: "removes punctuation", in: "What's, the distance?", out: "what s the distance"},
		{name: "folds arabic yeh and kaf", in: "ساعت كاري چيست؟", out: "ساعت کاری چیست"},
		{name: "maps persian and arabic digits", in: "۱۲۳ و ٤٥٦", out: "123 و 456"},
		{name: "drops tatweel", in: "مـــدرسه", out: "مدرسه"},
		{name: "drops zero width non joiner", in: "می‌خواهم", out: "میخواهم"},
		{name: "strips harakat", in: "کِتابُ", out: "کتاب"},
		{name: "persian punctuation separates words", in: "سلام،خوبی؛", out: "سلام خوبی"},
		{name: "whitespace only", in: " \t\n ", out: ""},
	}

	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.out {
			t.Fatalf("%s: expected %q got %q", tc.name, tc.out, got)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	corpus := []string{
		"ساعت کاری چیست",
		"ساعت كاري چيست؟",
		"  آدرس دفتر مرکزی کجاست؟  ",
		"هزینهٔ ارسال چقدر است",
		"رمز عبورم را فراموش کرده‌ام!!",
		"ﻻ إله",
		"Café AU LAIT ۲۰۲۴",
		"ﬁle ½ ™",
		"",
	}
	for _, text := range corpus {
		once := Normalize(text)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("normalize not idempotent for %q: %q then %q", text, once, twice)
		}
	}
}
