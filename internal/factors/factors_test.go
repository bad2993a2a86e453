package factors

import "testing"

func TestFactorIDsAreStable(t *testing.T) {
	// Persisted rows reference these ids; renumbering would corrupt history.
	expected := map[Factor]int{
		Macroeconomic:    1,
		InterestRates:    2,
		SupplyChain:      3,
		CompanyEarnings:  4,
		GovernmentPolicy: 5,
		Geopolitical:     6,
		Currency:         7,
		MarketSentiment:  8,
		IndustryTrends:   9,
		BlackSwan:        10,
	}

	for f, want := range expected {
		if int(f) != want {
			t.Errorf("Expected %s to have id %d, got %d", f.Name(), want, int(f))
		}
	}
}

func TestAll(t *testing.T) {
	all := All()
	if len(all) != 10 {
		t.Fatalf("Expected 10 factors, got %d", len(all))
	}
	for i, f := range all {
		if int(f) != i+1 {
			t.Errorf("Expected position %d to hold id %d, got %d", i, i+1, int(f))
		}
		if !f.Valid() {
			t.Errorf("Factor %d should be valid", int(f))
		}
		if f.Name() == "" {
			t.Errorf("Factor %d has empty name", int(f))
		}
		if len(f.Keywords()) == 0 {
			t.Errorf("Factor %s has no keywords", f.Name())
		}
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Factor
		found    bool
	}{
		{name: "exact match", input: "Supply Chain Events", expected: SupplyChain, found: true},
		{name: "case insensitive", input: "supply chain events", expected: SupplyChain, found: true},
		{name: "upper case", input: "BLACK SWAN EVENTS", expected: BlackSwan, found: true},
		{name: "with padding", input: "  Company Earnings & Performance  ", expected: CompanyEarnings, found: true},
		{name: "unknown", input: "Quantum Flux", found: false},
		{name: "empty", input: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ByName(tt.input)
			if ok != tt.found {
				t.Fatalf("Expected found=%v, got %v", tt.found, ok)
			}
			if ok && got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected.Name(), got.Name())
			}
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected Factor
		found    bool
	}{
		{
			name:     "factory shutdown",
			text:     "TSMC announces factory shutdown after earthquake damage",
			expected: SupplyChain,
			found:    true,
		},
		{
			name:     "fed rate decision",
			text:     "Federal Reserve signals another rate hike in September",
			expected: InterestRates,
			found:    true,
		},
		{
			name:     "earnings beat",
			text:     "NVIDIA quarterly results beat analyst expectations",
			expected: CompanyEarnings,
			found:    true,
		},
		{
			name:     "inflation print",
			text:     "CPI comes in hot, inflation fears return",
			expected: Macroeconomic,
			found:    true,
		},
		{
			name:     "lowest id wins on overlap",
			text:     "recession fears drive a broad sell-off",
			expected: Macroeconomic,
			found:    true,
		},
		{
			name:  "no keywords",
			text:  "company announces new office cafeteria menu",
			found: false,
		},
		{
			name:  "empty text",
			text:  "",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Match(tt.text)
			if ok != tt.found {
				t.Fatalf("Expected found=%v, got %v (factor %v)", tt.found, ok, got)
			}
			if ok && got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected.Name(), got.Name())
			}
		})
	}
}
