package provider

import (
	"testing"

	"mint/internal/mint"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind Kind
		wantErr  bool
	}{
		{name: "modio url", raw: "https://mod.io/g/drg/m/supply-crates", wantKind: KindModio},
		{name: "http url", raw: "http://example.com/mods/cool.pak", wantKind: KindHTTP},
		{name: "https url", raw: "https://cdn.example.com/a.zip", wantKind: KindHTTP},
		{name: "absolute pak path", raw: "/home/user/mods/cool.pak", wantKind: KindFile},
		{name: "absolute zip path", raw: "/home/user/mods/cool.zip", wantKind: KindFile},
		{name: "relative path rejected", raw: "mods/cool.pak", wantErr: true},
		{name: "wrong extension rejected", raw: "/home/user/mods/cool.txt", wantErr: true},
		{name: "empty spec rejected", raw: "", wantErr: true},
		{name: "garbage rejected", raw: "not a spec", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Parse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) succeeded, want error", tt.raw)
				}
				if mint.KindOf(err) != mint.KindSpecParse {
					t.Fatalf("Parse(%q) kind = %v, want SpecParse", tt.raw, mint.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.raw, err)
			}
			if spec.Kind != tt.wantKind {
				t.Fatalf("Parse(%q).Kind = %v, want %v", tt.raw, spec.Kind, tt.wantKind)
			}
		})
	}
}

func TestModioURLPrecedesHTTP(t *testing.T) {
	spec, err := Parse("https://mod.io/g/drg/m/supply-crates")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if spec.Kind != KindModio {
		t.Fatalf("modio URL parsed as %v, want modio (modio must take precedence over the generic http rule)", spec.Kind)
	}
	if spec.Game != "drg" || spec.Locator != "supply-crates" {
		t.Fatalf("unexpected parse: %+v", spec)
	}
}
