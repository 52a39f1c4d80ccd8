package report

import (
	"testing"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

func TestNetDeposit(t *testing.T) {
	tests := []struct {
		name                   string
		deposit, withdrawn, pl float64
		want                   float64
	}{
		{name: "nothing withdrawn", deposit: 100, want: 100},
		{name: "withdrawal covered by profit", deposit: 100, withdrawn: 50, pl: 80, want: 100},
		{name: "withdrawal beyond profit", deposit: 100, withdrawn: 50, pl: 20, want: 70},
		{name: "loss counts as no profit", deposit: 100, withdrawn: 30, pl: -40, want: 70},
		{name: "can go negative", deposit: 10, withdrawn: 50, want: -40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NetDeposit(tt.deposit, tt.withdrawn, tt.pl); got != tt.want {
				t.Errorf("NetDeposit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func rawRows(t *testing.T, rows ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(rows))
	for i, r := range rows {
		out[i] = json.RawMessage(r)
	}
	return out
}

func TestNormalize(t *testing.T) {
	rows := rawRows(t,
		`{"User_ID":"1","Customer_Name":"Ann","Registration_Date":"2024-01-02T10:00:00Z","LOTS":null,"PL":"12.5","Tracking_Code":"alt","First_Deposit_Date":""}`,
		`{"User_ID":"2","Customer_Name":"Bo","Registration_Date":"not a date"}`,
		`{"User_ID":"3","Registration_Date":"2024-01-02"}`,
		`{"User_ID":"4","Customer_Name":"Cy","Registration_Date":"2024-01-02","Qualification_Date":"yesterday"}`,
		`{"User_ID":"5","Customer_Name":"Di","Registration_Date":"2024-01-02","PL":"abc"}`,
		`{"User_ID":6,"Customer_Name":"Ed","Registration_Date":"2024-01-02 08:00:00","TrackingCode":"main","Tracking_Code":"alt"}`,
	)

	got := Normalize(newValidator(), rows, zap.NewNop())
	if len(got) != 2 {
		t.Fatalf("Normalize() kept %d rows, want 2: %+v", len(got), got)
	}

	first := got[0]
	if first.UserID != "1" || first.PL != 12.5 || first.Lots != 0 {
		t.Errorf("row 1 = %+v", first)
	}
	if tc := first.Tracking(); tc == nil || *tc != "alt" {
		t.Errorf("row 1 tracking = %v, want alt", tc)
	}
	if first.FirstDepositDate != nil {
		t.Errorf("blank First_Deposit_Date = %q, want nil", *first.FirstDepositDate)
	}

	if got[1].UserID != "6" {
		t.Errorf("row 2 UserID = %q, want 6", got[1].UserID)
	}
	if tc := got[1].Tracking(); tc == nil || *tc != "main" {
		t.Errorf("row 2 tracking = %v, want main", tc)
	}
}

func TestBuildRecord(t *testing.T) {
	rows := Normalize(newValidator(), rawRows(t,
		`{"User_ID":"9","Customer_Name":"Ann","Registration_Date":"2024-01-02","First_Deposit":200,"Withdrawals":150,"PL":100,"Commissions":7,"LOTS":3}`,
	), zap.NewNop())
	if len(rows) != 1 {
		t.Fatal("row rejected")
	}

	rec := BuildRecord(rows[0], strptr("hash"))
	if rec.CustomerID != "9" || rec.NetDeposit != 150 || rec.Commission != 7 || rec.LotAmount != 3 {
		t.Errorf("BuildRecord() = %+v", rec)
	}
	if rec.CustomerNameHash == "" || rec.CustomerNameHash == "Ann" {
		t.Errorf("CustomerNameHash = %q, want a hash", rec.CustomerNameHash)
	}
	if rec.Email == nil || *rec.Email != "hash" {
		t.Errorf("Email = %v", rec.Email)
	}
}

func TestPlaceholder(t *testing.T) {
	recs := Placeholder(5, t0)
	if len(recs) != 5 {
		t.Fatalf("len = %d, want 5", len(recs))
	}
	if recs[0].CustomerID != "fake_1" || *recs[4].TrackingCode != "TRACK5" {
		t.Errorf("ids = %s, %s", recs[0].CustomerID, *recs[4].TrackingCode)
	}
	for _, r := range recs {
		if !r.ModifiedAt.Equal(t0) || r.Email == nil {
			t.Errorf("record %s = %+v", r.CustomerID, r)
		}
	}
}
