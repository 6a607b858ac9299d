package services

import (
	"testing"
	"time"
)

func TestParseNumericValue(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"55 000 ₽/мес", "55000", true},
		{"1.200.000 ₽", "1200000", true},
		{"12,5 м²", "12.5", true},
		{"2,7 м", "2.7", true},
		{"нет", "0", true},
		{"Нет", "0", true},
		{"50%", "50", true},
		{"5/9", "5", true},
		{"", "", false},
		{"договорная", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseNumericValue(tt.raw)
		if ok != tt.ok {
			t.Errorf("ParseNumericValue(%q) ok = %v; want %v", tt.raw, ok, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseNumericValue(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseRussianDate(t *testing.T) {
	now := time.Date(2025, time.June, 15, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		label string
		want  time.Time
		ok    bool
	}{
		{"сегодня, 12:30", time.Date(2025, time.June, 15, 12, 30, 0, 0, time.UTC), true},
		{"вчера, 09:15", time.Date(2025, time.June, 14, 9, 15, 0, 0, time.UTC), true},
		{"5 мая, 18:00", time.Date(2025, time.May, 5, 18, 0, 0, 0, time.UTC), true},
		// A future month belongs to last year.
		{"20 дек, 10:00", time.Date(2024, time.December, 20, 10, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"когда-то давно", time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseRussianDate(tt.label, now)
		if ok != tt.ok {
			t.Errorf("ParseRussianDate(%q) ok = %v; want %v", tt.label, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("ParseRussianDate(%q) = %v; want %v", tt.label, got, tt.want)
		}
	}
}

func TestNormalizeStreetName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Тверская улица", "Тверская ул."},
		{"Ленинградское шоссе", "Ленинградское ш."},
		{"Кутузовский проспект", "Кутузовский просп."},
		{"Столешников переулок", "Столешников пер."},
		{"Цветной бульвар", "Цветной бул."},
		{"уже ул.", "уже ул."},
	}

	for _, tt := range tests {
		if got := NormalizeStreetName(tt.in); got != tt.want {
			t.Errorf("NormalizeStreetName(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildFullAddress(t *testing.T) {
	parts := []string{
		"Москва",
		"ЦАО",
		"р-н Тверской",
		"м. Пушкинская",
		"Тверская улица",
		"12",
	}

	got := BuildFullAddress(parts)
	want := "Москва, Тверская ул., 12"
	if got != want {
		t.Errorf("BuildFullAddress = %q; want %q", got, want)
	}
}

func TestFormatPriceDelta(t *testing.T) {
	if got := FormatPriceDelta("55000", "60000"); got != "-5000" {
		t.Errorf("FormatPriceDelta(55000, 60000) = %q; want -5000", got)
	}
	if got := FormatPriceDelta("60000", "55000"); got != "5000" {
		t.Errorf("FormatPriceDelta(60000, 55000) = %q; want 5000", got)
	}
}
