package isbn

import "testing"

func TestIsValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid isbn13", "9788804668237", true},
		{"valid isbn13 english", "9780306406157", true},
		{"invalid isbn13 checksum", "9788804668238", false},
		{"valid isbn10", "0306406152", true},
		{"valid isbn10 with X", "080442957X", true},
		{"lowercase x", "080442957x", true},
		{"X in the middle", "08044X9571", false},
		{"invalid isbn10 checksum", "0306406153", false},
		{"wrong length", "12345", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.input); got != tt.want {
				t.Errorf("IsValid(%q): expected %v, got %v", tt.input, tt.want, got)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"hyphenated", "978-88-04-66823-7", "9788804668237", true},
		{"spaces", " 0 306 40615 2 ", "0306406152", true},
		{"prefixed label", "ISBN 978-0-306-40615-7", "9780306406157", true},
		{"garbage", "not an isbn", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}

// Changing any single digit of a valid ISBN must break its checksum at
// least at one position.
func TestChecksumSensitivity(t *testing.T) {
	for _, valid := range []string{"9788804668237", "0306406152"} {
		broken := 0
		for i := 0; i < len(valid); i++ {
			for d := byte('0'); d <= '9'; d++ {
				if valid[i] == d {
					continue
				}
				mutated := valid[:i] + string(d) + valid[i+1:]
				if !IsValid(mutated) {
					broken++
				}
			}
		}
		if broken == 0 {
			t.Errorf("Expected single digit mutations of %s to be detected", valid)
		}
	}
}

func TestTo13(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"0306406152", "9780306406157", true},
		{"0-306-40615-2", "9780306406157", true},
		{"9788804668237", "9788804668237", true},
		{"0306406153", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := To13(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}

func TestFindInText(t *testing.T) {
	text := "Bompiani\nPrima edizione 1980\nISBN 978-88-04-66823-7\nStampato in Italia"

	got, ok := FindInText(text)
	if !ok {
		t.Fatal("Expected an ISBN to be found")
	}
	if got != "9788804668237" {
		t.Errorf("Expected 9788804668237, got %s", got)
	}

	if _, ok := FindInText("telefono 1234567"); ok {
		t.Error("Expected no ISBN in short digit runs")
	}
}
