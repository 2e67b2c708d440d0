package domain

// PurchaseType identifies the kind of bill being paid.
type PurchaseType string

const (
	PurchaseAirtime     PurchaseType = "airtime"
	PurchaseData        PurchaseType = "data"
	PurchaseElectricity PurchaseType = "electricity"
)

// Valid reports whether t is a known purchase type.
func (t PurchaseType) Valid() bool {
	switch t {
	case PurchaseAirtime, PurchaseData, PurchaseElectricity:
		return true
	}
	return false
}

// Provider is a catalog entry for a purchase type (mobile network,
// electricity company).
type Provider struct {
	ServiceID string   `json:"serviceId"`
	Name      string   `json:"name"`
	Image     string   `json:"image"`
	MinAmount *float64 `json:"minAmount,omitempty"`
	MaxAmount *float64 `json:"maxAmount,omitempty"`
}

// DataPlan is a purchasable mobile-data bundle.
type DataPlan struct {
	PlanID     string  `json:"planId"`
	Name       string  `json:"name"`
	FiatAmount float64 `json:"amount"`
	Validity   string  `json:"validity"`
}

// MeterType is an electricity meter category (prepaid/postpaid).
type MeterType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExpectedAmount is the backend's conversion of a fiat amount into the
// crypto amount required on a specific chain.
type ExpectedAmount struct {
	CryptoAmount   float64   `json:"cryptoAmount"`
	CryptoCurrency string    `json:"cryptoCurrency"`
	Chain          string    `json:"chain"`
	FiatAmount     float64   `json:"fiatAmount"`
	PlanDetails    *DataPlan `json:"planDetails,omitempty"`
}

// MeterVerification is the outcome of a meter-number check.
type MeterVerification struct {
	CustomerName string `json:"customerName"`
	Address      string `json:"address,omitempty"`
}

// PurchaseResult is the backend's projection of a recorded purchase.
type PurchaseResult struct {
	Reference       string `json:"reference"`
	Provider        string `json:"provider"`
	Type            string `json:"type"`
	Token           string `json:"token,omitempty"` // electricity voucher
	Units           string `json:"units,omitempty"`
	Message         string `json:"message,omitempty"`
	TransactionHash string `json:"transactionHash"`
}

// PurchaseRecord is one entry of the backend purchase history.
type PurchaseRecord struct {
	Reference  string  `json:"reference"`
	Type       string  `json:"type"`
	Provider   string  `json:"provider"`
	FiatAmount float64 `json:"amount"`
	Status     string  `json:"status"`
	CreatedAt  int64   `json:"createdAt"` // Unix timestamp in milliseconds
}
