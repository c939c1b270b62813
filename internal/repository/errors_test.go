package repository

import (
	"fmt"
	"math"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitGuests(t *testing.T) {
	cases := []struct {
		name      string
		capacity  uint32
		reserved  uint32
		requested uint32
		want      error
	}{
		{"fills exactly to capacity", 10, 8, 2, nil},
		{"single seat left", 10, 9, 1, nil},
		{"empty session", 5, 0, 5, nil},
		{"one over capacity", 10, 9, 2, ErrCapacityExceeded},
		{"already full", 10, 10, 1, ErrCapacityExceeded},
		{"zero guests rejected", 10, 0, 0, ErrConflict},
		{"request larger than any capacity", 5, 3, math.MaxUint32, ErrCapacityExceeded},
		{"sum past uint32 range", math.MaxUint32, math.MaxUint32 - 1, 2, ErrCapacityExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AdmitGuests(tc.capacity, tc.reserved, tc.requested)
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	require.True(t, isDuplicateKey(dup))
	require.True(t, isDuplicateKey(fmt.Errorf("insert usage: %w", dup)))

	assert.False(t, isDuplicateKey(&mysql.MySQLError{Number: 1213}))
	assert.False(t, isDuplicateKey(fmt.Errorf("plain error")))
	assert.False(t, isDuplicateKey(nil))
}
