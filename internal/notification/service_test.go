package notification

import (
	"errors"
	"testing"
)

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		wantErr bool
	}{
		{
			name: "system without object",
			in:   Input{Type: TypeSystem, Title: "t", Message: "m"},
		},
		{
			name:    "system with object",
			in:      Input{Type: TypeSystem, ObjectType: "reminder", ObjectID: 1},
			wantErr: true,
		},
		{
			name: "reminder with object",
			in:   Input{Type: TypeReminder, ObjectType: "reminder", ObjectID: 1},
		},
		{
			name:    "reminder without object",
			in:      Input{Type: TypeReminder},
			wantErr: true,
		},
		{
			name: "activity with object",
			in:   Input{Type: TypeActivity, ObjectType: "lead", ObjectID: 4},
		},
		{
			name:    "alert without object",
			in:      Input{Type: TypeAlert},
			wantErr: true,
		},
		{
			name:    "unknown type",
			in:      Input{Type: "NUDGE"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInput(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v, want nil", err)
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]uint64{3, 1, 3, 2, 1})
	want := []uint64{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("dedupe = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dedupe = %v, want %v (order preserved)", got, want)
		}
	}
}
