package identity

import "testing"

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want bool
	}{
		{"user", User("u1"), true},
		{"anonymous", Anonymous("sess1"), true},
		{"minted", NewAnonymous(), true},
		{"zero_value", Identity{}, false},
		{"empty_id", Identity{Kind: KindUser}, false},
		{"unknown_kind", Identity{Kind: "robot", ID: "r1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	if got := User("u1").String(); got != "user:u1" {
		t.Errorf("String() = %q, want user:u1", got)
	}
	if got := Anonymous("sess1").String(); got != "anonymous:sess1" {
		t.Errorf("String() = %q, want anonymous:sess1", got)
	}
}

func TestNewAnonymous_Unique(t *testing.T) {
	a, b := NewAnonymous(), NewAnonymous()
	if a.ID == b.ID {
		t.Error("minted session IDs collide")
	}
	if a.Kind != KindAnonymous {
		t.Errorf("Kind = %q, want anonymous", a.Kind)
	}
}
