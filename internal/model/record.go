package model

import (
	"strings"
	"time"
)

// Record is one customer row of the persisted snapshot. JSON names are the
// ones downstream consumers of /reports read.
type Record struct {
	CustomerID        string    `json:"CustomerId"`
	RegistrationDate  string    `json:"RegistrationDate"`
	TrackingCode      *string   `json:"TrackingCode"`
	QualificationDate *string   `json:"QualificationDate"`
	LotAmount         float64   `json:"LotAmount"`
	FirstDeposit      float64   `json:"FirstDeposit"`
	FirstDepositDate  *string   `json:"FirstDepositDate"`
	NetDeposit        float64   `json:"NetDeposit"`
	CustomerNameHash  string    `json:"CustomerNameHash"`
	Commission        float64   `json:"Commission"`
	PL                float64   `json:"PL"`
	Withdrawals       float64   `json:"Withdrawals"`
	Email             *string   `json:"Email"`
	ModifiedAt        time.Time `json:"modifiedAt"`
}

// RawRegistration is one row of the affiliate registration report.
type RawRegistration struct {
	UserID            FlexString `json:"User_ID" validate:"required"`
	CustomerName      FlexString `json:"Customer_Name" validate:"required"`
	RegistrationDate  string     `json:"Registration_Date" validate:"required,isodate"`
	Lots              Number     `json:"LOTS"`
	Withdrawals       Number     `json:"Withdrawals"`
	PL                Number     `json:"PL"`
	FirstDeposit      Number     `json:"First_Deposit"`
	FirstDepositDate  *string    `json:"First_Deposit_Date" validate:"omitempty,isodate"`
	QualificationDate *string    `json:"Qualification_Date" validate:"omitempty,isodate"`
	Commissions       Number     `json:"Commissions"`
	TrackingCode      FlexString `json:"TrackingCode"`
	TrackingCodeAlt   FlexString `json:"Tracking_Code"`
}

// Tracking returns the tracking code, falling back to the alternate field.
func (r RawRegistration) Tracking() *string {
	tc := strings.TrimSpace(r.TrackingCode.String())
	if tc == "" {
		tc = strings.TrimSpace(r.TrackingCodeAlt.String())
	}
	if tc == "" {
		return nil
	}
	return &tc
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseISODate accepts the ISO-8601 shapes the report emits.
func ParseISODate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PullState is what the pull loop persists after each successful run.
type PullState struct {
	LastFetch *time.Time `json:"lastFetch"`
}

// AccessState is the delta cursor of the /reports consumer.
type AccessState struct {
	LastClientFetch *time.Time `json:"lastClientFetch"`
}
