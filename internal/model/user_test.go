package model

import "testing"

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role     string
		minimum  string
		expected bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleCustodian, true},
		{RoleAdmin, RoleStudent, true},
		{RoleCustodian, RoleAdmin, false},
		{RoleCustodian, RoleCustodian, true},
		{RoleCustodian, RoleStudent, true},
		{RoleStudent, RoleAdmin, false},
		{RoleStudent, RoleCustodian, false},
		{RoleStudent, RoleStudent, true},
		// Unknown roles fail-closed.
		{"unknown", RoleStudent, false},
		{RoleAdmin, "unknown", false},
		{"", "", false},
		{"", RoleStudent, false},
	}

	for _, tt := range tests {
		got := RoleAtLeast(tt.role, tt.minimum)
		if got != tt.expected {
			t.Errorf("RoleAtLeast(%q, %q) = %v, want %v", tt.role, tt.minimum, got, tt.expected)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}

func TestStockStatus(t *testing.T) {
	tests := []struct {
		stock int
		want  string
	}{
		{0, StockStatusOut},
		{-1, StockStatusOut},
		{1, StockStatusLimited},
		{19, StockStatusLimited},
		{20, StockStatusIn},
		{500, StockStatusIn},
	}
	for _, tt := range tests {
		if got := StockStatus(tt.stock); got != tt.want {
			t.Errorf("StockStatus(%d) = %q, want %q", tt.stock, got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusReady, OrderStatusClaimed, true},
		{OrderStatusReady, OrderStatusCancelled, true},
		{OrderStatusClaimed, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusClaimed, false},
		{OrderStatusPending, OrderStatusClaimed, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
