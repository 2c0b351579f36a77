package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingState_IsTerminal(t *testing.T) {
	testCases := []struct {
		status        BookingStatus
		paymentStatus PaymentStatus
		expected      bool
	}{
		{BookingStatusConfirmed, PaymentStatusPaid, true},
		{BookingStatusCompleted, PaymentStatusPaid, true},
		{BookingStatusApproved, PaymentStatusPaid, true},
		{BookingStatusCancelled, PaymentStatusCancelled, true},
		{BookingStatusRejected, PaymentStatusFailed, true},
		{BookingStatusPending, PaymentStatusPreAuthorized, false},
		{BookingStatusPending, PaymentStatusProcessing, false},
		{BookingStatusApproved, PaymentStatusPreAuthorized, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.status)+"/"+string(tc.paymentStatus), func(t *testing.T) {
			state := BookingState{Status: tc.status, PaymentStatus: tc.paymentStatus}
			assert.Equal(t, tc.expected, state.IsTerminal())
		})
	}
}
