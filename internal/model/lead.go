package model

// Lead is a customer as exported by the CRM backend.
type Lead struct {
	ID               int64      `json:"id"`
	FullName         string     `json:"fullName"`
	Email            string     `json:"email"`
	CRMLogin         string     `json:"crmLogin"`
	Phone            string     `json:"phone"`
	Country          string     `json:"country"`
	BirthDate        string     `json:"birthDate"`
	Address          string     `json:"address"`
	RegistrationDate string     `json:"registrationDate"`
	KYCPercent       FlexString `json:"kycPercent"`
	Status           FlexString `json:"status"`
	TotalDeclined    Number     `json:"totalDeclined"`
	FTDAmount        Number     `json:"ftdAmount"`
	FTDDate          string     `json:"ftdDate"`
	TriedDeposit     FlexBool   `json:"triedDeposit"`
	AffiliateName    string     `json:"affiliateName"`
}

// Deposited reports whether the lead belongs on the self-deposit board.
func (l Lead) Deposited() bool {
	return bool(l.TriedDeposit) || l.FTDAmount > 0
}

// Transaction is a first-time-deposit row from the CRM.
type Transaction struct {
	Amount Number `json:"amount"`
	User   *struct {
		ID int64 `json:"id"`
	} `json:"user"`
}

// TotalsQuery asks for the totals of one client since a point in time.
type TotalsQuery struct {
	CRMID int64  `json:"crm_id"`
	Since string `json:"since"`
}

// Totals is the aggregated deposit/withdrawal activity of one client.
type Totals struct {
	UserID               int64  `json:"userId"`
	TotalDeposit         Number `json:"totalDeposit"`
	TotalWD              Number `json:"totalWD"`
	TotalDepositDeclined Number `json:"totalDepositDeclined"`
	TotalWDDeclined      Number `json:"totalWDDeclined"`
}
