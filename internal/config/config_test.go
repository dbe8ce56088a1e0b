package config

import "testing"

func TestParseBranches(t *testing.T) {
	got := parseBranches("101:Jakarta Pusat:Jl. Sudirman 1, 102:Bandung ,103")
	if len(got) != 3 {
		t.Fatalf("branches = %d, want 3", len(got))
	}
	if got[0].Code != "101" || got[0].Name != "Jakarta Pusat" || got[0].Address != "Jl. Sudirman 1" {
		t.Fatalf("first branch = %+v", got[0])
	}
	if got[1].Code != "102" || got[1].Name != "Bandung" || got[1].Address != "" {
		t.Fatalf("second branch = %+v", got[1])
	}
	// A bare code keeps the code as its name.
	if got[2].Code != "103" || got[2].Name != "103" {
		t.Fatalf("third branch = %+v", got[2])
	}
}

func TestParseBranchesEmpty(t *testing.T) {
	if got := parseBranches(""); len(got) != 0 {
		t.Fatalf("branches = %+v, want none", got)
	}
	if got := parseBranches(" , ,"); len(got) != 0 {
		t.Fatalf("branches = %+v, want none", got)
	}
}
