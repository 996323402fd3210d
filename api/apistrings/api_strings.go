package apistrings

const (
	ServerError      = "Oops! Something happened, please try again"
	StorageBusy      = "The service is busy, please retry your request"
	UserNotFound     = "User could not be found"
	AccessDenied     = "You do not have access to this resource"
	InvalidInput     = "Please enter valid details"
	InvalidAmount    = "Please enter a valid amount"
	AccountNotFound  = "Wallet account could not be found"
	AccountBlocked   = "This wallet account is deactivated"
	AccountPending   = "This wallet account has not been approved yet"
	LowBalance       = "Wallet balance is too low for this transaction"
	DuplicateRequest = "This transaction was already processed"
	OrderNotFound    = "Order could not be found"
	OrderNotYours    = "This order belongs to another user"
	BadTransition    = "Order cannot move to the requested status"
	CancelWindow     = "Order can no longer be cancelled"
	BadPickupCode    = "Pickup code could not be verified"
	UsedPickupCode   = "Pickup code was already redeemed"
	ShardNotFound    = "No transactions recorded for the requested month"
	TxNotFound       = "Transaction could not be found"
	TransferNotFound = "Vendor transfer not found or already completed"
)
