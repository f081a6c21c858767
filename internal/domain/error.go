package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable machine-readable error code carried next to the
// localized message in every error response.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindDuplicateUsername   Kind = "duplicate_username"
	KindUnauthenticated     Kind = "unauthenticated"
	KindInvalidPin          Kind = "invalid_pin"
	KindReceiverNotFound    Kind = "receiver_not_found"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindNotFound            Kind = "not_found"
	KindInternal            Kind = "internal_error"
)

// Error pairs a kind with the user-facing localized message. The
// message strings are the product's Burmese copy.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

var (
	ErrMissingFields       = &Error{KindValidation, "လိုအပ်သော အချက်အလက်များ ပေးပို့ရန် လိုအပ်ပါသည်"}
	ErrDuplicateUsername   = &Error{KindDuplicateUsername, "ဖုန်းနံပါတ် အသုံးပြုပြီးဖြစ်ပါသည်"}
	ErrUnauthenticated     = &Error{KindUnauthenticated, "ကျေးဇူးပြု၍ အကောင့်ဝင်ပါ"}
	ErrInvalidCredentials  = &Error{KindUnauthenticated, "စကားဝှက် မှားယွင်းနေပါသည်"}
	ErrAccountNotFound     = &Error{KindUnauthenticated, "အကောင့်မတွေ့ရှိပါ"}
	ErrAccountNotActive    = &Error{KindUnauthenticated, "သင့်အကောင့် အတည်ပြုရန် လိုအပ်ပါသေးသည်"}
	ErrInvalidPin          = &Error{KindInvalidPin, "လုံခြုံရေးကုဒ် မှားယွင်းနေပါသည်"}
	ErrReceiverNotFound    = &Error{KindReceiverNotFound, "လက်ခံမည့်သူ မတွေ့ရှိပါ"}
	ErrInsufficientBalance = &Error{KindInsufficientBalance, "လက်ကျန်ငွေ မလုံလောက်ပါ"}
	ErrSelfTransfer        = &Error{KindValidation, "မိမိကိုယ်ပိုင်အကောင့်သို့ ငွေလွှဲ၍ မရနိုင်ပါ"}
	ErrUserNotFound        = &Error{KindNotFound, "အသုံးပြုသူ မတွေ့ရှိပါ"}
	ErrTransactionNotFound = &Error{KindNotFound, "လုပ်ငန်းဆောင်တာ မတွေ့ရှိပါ"}
	ErrQRInvalid           = &Error{KindNotFound, "QR ကုဒ် သက်တမ်းကုန်ဆုံးသွားပါပြီ"}
	ErrInternal            = &Error{KindInternal, "စနစ်တွင် အမှားဖြစ်ပွားနေပါသည်"}
)

// HTTPStatus maps an error kind to the response status used at the
// API boundary.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation, KindDuplicateUsername, KindInvalidPin, KindInsufficientBalance:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindReceiverNotFound, KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FromError extracts a *Error, falling back to ErrInternal so nothing
// leaks an unclassified fault to the caller.
func FromError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return ErrInternal
}
