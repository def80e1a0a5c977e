package app

import "errors"

var (
	ErrInvalidInput             = errors.New("invalid input")
	ErrMessageEmpty             = errors.New("message content is empty")
	ErrNoSearchAttributes       = errors.New("need at least one attribute: brand, model, sub_model or year")
	ErrInvalidSection           = errors.New("section must be one of Coverage, Exclusion, Condition, Definition")
	ErrVehiclePlanNotFound      = errors.New("car and plan combination not found")
	ErrQuotationNotFound        = errors.New("quotation not found")
	ErrQuotationExpired         = errors.New("quotation expired")
	ErrOrderNotFound            = errors.New("order not found")
	ErrInvalidPaymentStatus     = errors.New("invalid payment status")
	ErrInvalidPaymentTransition = errors.New("payment status transition not allowed")
	ErrInvalidPaymentDate       = errors.New("invalid payment date")
	ErrNumberExhausted          = errors.New("could not allocate a unique reference number")
	ErrUpstream                 = errors.New("upstream provider failed")
	ErrInvalidCredential        = errors.New("invalid username or password")
)
