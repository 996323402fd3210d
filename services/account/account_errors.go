package account

import "fmt"

var (
	ErrAccountNotFound    = fmt.Errorf("account not found")
	ErrAccountInactive    = fmt.Errorf("account is deactivated")
	ErrAccountNotApproved = fmt.Errorf("account is not approved")
)

type AccountError struct {
	ErrorObj  error
	AccountID int64
	Other     []error
}

func (a *AccountError) Error() string {
	return a.ErrorObj.Error()
}

func (a *AccountError) Unwrap() error {
	return a.ErrorObj
}

func (a *AccountError) ErrorOut() string {
	return fmt.Sprintf("%v: %v", a.ErrorObj.Error(), a.AccountID)
}

func NewAccountError(err error, accountID int64, e ...error) *AccountError {
	return &AccountError{
		ErrorObj:  err,
		AccountID: accountID,
		Other:     e,
	}
}
