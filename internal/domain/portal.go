/**
 * @description
 * Request and response models for the MB Bank retail web portal. Field names
 * mirror the portal's JSON exactly; the portal has no published schema, so these
 * structs are the contract observed on the wire.
 */
package domain

// Portal response codes observed on the wire.
const (
	ResponseCodeOK             = "00"
	ResponseCodeSessionExpired = "GW200"
	ResponseCodeCaptchaInvalid = "GW283"
)

// Inquiry types accepted by inquiryAccountName.
const (
	InquiryTypeInHouse = "INHOUSE"
	InquiryTypeFast    = "FAST"
)

// ResultBlock is the status envelope embedded in every portal response.
type ResultBlock struct {
	Ok           bool   `json:"ok"`
	ResponseCode string `json:"responseCode"`
	Message      string `json:"message"`
}

// Succeeded reports whether the portal accepted the request.
func (r ResultBlock) Succeeded() bool {
	return r.Ok && (r.ResponseCode == "" || r.ResponseCode == ResponseCodeOK)
}

// CaptchaRequest asks the portal for a fresh captcha image.
type CaptchaRequest struct {
	RefNo          string `json:"refNo"`
	DeviceIDCommon string `json:"deviceIdCommon"`
	SessionID      string `json:"sessionId"`
}

// CaptchaResponse carries the base64 encoded captcha PNG.
type CaptchaResponse struct {
	ImageString string      `json:"imageString"`
	Result      ResultBlock `json:"result"`
}

// LoginPayload is the plaintext record handed to the credential encoder.
// SessionID is always null on the wire.
type LoginPayload struct {
	UserID            string  `json:"userId"`
	Password          string  `json:"password"`
	Captcha           string  `json:"captcha"`
	IBAuthen2FAString string  `json:"ibAuthen2faString"`
	SessionID         *string `json:"sessionId"`
	RefNo             string  `json:"refNo"`
	DeviceIDCommon    string  `json:"deviceIdCommon"`
}

// LoginRequest is the body posted to doLogin.
type LoginRequest struct {
	DataEnc string `json:"dataEnc"`
}

// LoginCustomer is the subset of the customer profile returned on login.
type LoginCustomer struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"nm"`
}

// LoginResponse is returned by doLogin.
type LoginResponse struct {
	SessionID string         `json:"sessionId"`
	Result    ResultBlock    `json:"result"`
	Cust      *LoginCustomer `json:"cust,omitempty"`
}

// InquiryRequest resolves a beneficiary account name.
type InquiryRequest struct {
	CreditAccount     string `json:"creditAccount"`
	CreditAccountType string `json:"creditAccountType"`
	BankCode          string `json:"bankCode"`
	DebitAccount      string `json:"debitAccount"`
	Type              string `json:"type"`
	SessionID         string `json:"sessionId"`
	RefNo             string `json:"refNo"`
	DeviceIDCommon    string `json:"deviceIdCommon"`
}

// InquiryResponse is returned by inquiryAccountName.
type InquiryResponse struct {
	BenName string      `json:"benName"`
	Result  ResultBlock `json:"result"`
}

// KeepAliveRequest is the lightweight authenticated probe used to keep a session warm.
type KeepAliveRequest struct {
	TransactionType string `json:"transactionType"`
	SearchType      string `json:"searchType"`
	SessionID       string `json:"sessionId"`
	RefNo           string `json:"refNo"`
	DeviceIDCommon  string `json:"deviceIdCommon"`
}

// KeepAliveResponse carries only the result block the probe inspects.
type KeepAliveResponse struct {
	Result ResultBlock `json:"result"`
}
