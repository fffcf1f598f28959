package request

type InitializePaymentRequest struct {
	BookingID     string `json:"booking_id" validate:"required,uuid"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=mobile_money card cash other"`
	PhoneNumber   string `json:"phone_number" validate:"required_if=PaymentMethod mobile_money,omitempty,ke_phone"`
	Email         string `json:"email" validate:"omitempty,email"`
	// SuccessURL and CancelURL switch card payments to a hosted checkout page.
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
}

type RefundPaymentRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type ConfirmManualPaymentRequest struct {
	// Reference is the till slip or transfer reference recorded by staff.
	Reference string `json:"reference" validate:"omitempty,max=100"`
}

type PaymentStatsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}
