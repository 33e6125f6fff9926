package services

import (
	"testing"

	"locshare-backend/internal/models"
)

func TestClampHistoryLimit(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		plan      string
		want      int
	}{
		{name: "free default", requested: 0, plan: models.PlanFree, want: 3},
		{name: "free asks for more", requested: 50, plan: models.PlanFree, want: 3},
		{name: "free asks for less", requested: 2, plan: models.PlanFree, want: 2},
		{name: "paid default", requested: 0, plan: models.PlanPaid, want: 50},
		{name: "paid asks for max", requested: 100, plan: models.PlanPaid, want: 100},
		{name: "paid asks for too much", requested: 500, plan: models.PlanPaid, want: 100},
		{name: "paid asks for less", requested: 10, plan: models.PlanPaid, want: 10},
		{name: "negative request", requested: -1, plan: models.PlanPaid, want: 50},
		{name: "unknown plan treated as free", requested: 50, plan: "trial", want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampHistoryLimit(tt.requested, tt.plan); got != tt.want {
				t.Errorf("clampHistoryLimit(%d, %q) = %d, want %d", tt.requested, tt.plan, got, tt.want)
			}
		})
	}
}
