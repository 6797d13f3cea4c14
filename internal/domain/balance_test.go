package domain

import "testing"

func TestBalance_Available(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		amount float64
		locked float64
		want   float64
	}{
		{"nothing locked", 10, 0, 10},
		{"partially locked", 10, 3.5, 6.5},
		{"fully locked", 10, 10, 0},
		{"empty", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := &Balance{Amount: tt.amount, Locked: tt.locked}
			if got := b.Available(); got != tt.want {
				t.Errorf("Available() = %v, want %v", got, tt.want)
			}
		})
	}
}
