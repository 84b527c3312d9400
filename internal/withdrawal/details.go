package withdrawal

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/taskvip/walletcore/internal/apperr"
	"github.com/taskvip/walletcore/internal/models"
	"github.com/taskvip/walletcore/internal/util"
)

var (
	ifscPattern          = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	accountNumberPattern = regexp.MustCompile(`^[0-9]{6,20}$`)
)

// PaymentDetails is the method-specific payout destination.
type PaymentDetails interface {
	Method() string
	Validate() error
	// Masked returns a copy safe to show to managers and logs.
	Masked() PaymentDetails
}

// UPIDetails pays out to a UPI virtual payment address.
type UPIDetails struct {
	UPIID string `json:"upi_id"`
}

// Method implements PaymentDetails.
func (UPIDetails) Method() string { return models.PaymentMethodUPI }

// Validate implements PaymentDetails.
func (d UPIDetails) Validate() error {
	id := strings.TrimSpace(d.UPIID)
	if id == "" {
		return apperr.Validation("payment_details.upi_id", "upi_id is required")
	}
	if at := strings.Index(id, "@"); at <= 0 || at == len(id)-1 {
		return apperr.Validation("payment_details.upi_id", "upi_id must look like name@provider")
	}
	return nil
}

// Masked implements PaymentDetails.
func (d UPIDetails) Masked() PaymentDetails {
	return UPIDetails{UPIID: util.MaskUPIID(d.UPIID)}
}

// BankTransferDetails pays out to an Indian bank account.
type BankTransferDetails struct {
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
	HolderName    string `json:"holder_name"`
	BankName      string `json:"bank_name"`
}

// Method implements PaymentDetails.
func (BankTransferDetails) Method() string { return models.PaymentMethodBankTransfer }

// Validate implements PaymentDetails. Missing fields are reported first, in
// declaration order.
func (d BankTransferDetails) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"account_number", d.AccountNumber},
		{"ifsc", d.IFSC},
		{"holder_name", d.HolderName},
		{"bank_name", d.BankName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperr.Validation("payment_details."+r.field, r.field+" is required")
		}
	}
	if !accountNumberPattern.MatchString(strings.TrimSpace(d.AccountNumber)) {
		return apperr.Validation("payment_details.account_number", "account_number must be 6 to 20 digits")
	}
	if !ifscPattern.MatchString(strings.TrimSpace(d.IFSC)) {
		return apperr.Validation("payment_details.ifsc", "ifsc must match AAAA0XXXXXX")
	}
	return nil
}

// Masked implements PaymentDetails.
func (d BankTransferDetails) Masked() PaymentDetails {
	d.AccountNumber = util.MaskAccountNumber(d.AccountNumber)
	return d
}

// NormalizeMethod upper-cases a payment method name.
func NormalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}

// DecodeDetails parses raw as the variant selected by method and validates it.
func DecodeDetails(method string, raw json.RawMessage) (PaymentDetails, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, apperr.Validation("payment_details", "payment_details is required")
	}

	var details PaymentDetails
	switch NormalizeMethod(method) {
	case models.PaymentMethodUPI:
		var d UPIDetails
		if errUnmarshal := json.Unmarshal(raw, &d); errUnmarshal != nil {
			return nil, apperr.Validation("payment_details", "payment_details must be an object").Wrap(errUnmarshal)
		}
		d.UPIID = strings.TrimSpace(d.UPIID)
		details = d
	case models.PaymentMethodBankTransfer:
		var d BankTransferDetails
		if errUnmarshal := json.Unmarshal(raw, &d); errUnmarshal != nil {
			return nil, apperr.Validation("payment_details", "payment_details must be an object").Wrap(errUnmarshal)
		}
		d.AccountNumber = strings.TrimSpace(d.AccountNumber)
		d.IFSC = strings.ToUpper(strings.TrimSpace(d.IFSC))
		d.HolderName = strings.TrimSpace(d.HolderName)
		d.BankName = strings.TrimSpace(d.BankName)
		details = d
	default:
		return nil, apperr.Validation("payment_method", "payment_method must be UPI or BANK_TRANSFER")
	}
	if errValidate := details.Validate(); errValidate != nil {
		return nil, errValidate
	}
	return details, nil
}

// StoredDetails decodes the details persisted on w without re-validating them.
func StoredDetails(w models.Withdrawal) (PaymentDetails, error) {
	switch w.PaymentMethod {
	case models.PaymentMethodUPI:
		var d UPIDetails
		if err := json.Unmarshal(w.PaymentDetails, &d); err != nil {
			return nil, err
		}
		return d, nil
	case models.PaymentMethodBankTransfer:
		var d BankTransferDetails
		if err := json.Unmarshal(w.PaymentDetails, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, apperr.Validation("payment_method", "unknown payment method "+w.PaymentMethod)
	}
}
