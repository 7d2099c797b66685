package response

// Business codes. The ranges double as the error taxonomy: the UI retries on
// conflict (3xxxx membership races, 40003 transient gateway) and gives up on
// validation/state/terminal-gateway codes.
const (
	CodeSuccess = 0
	CodeError   = 1

	// User module errors 100xx
	ErrUserNotFound = 10001
	ErrTokenInvalid = 10002
	ErrNoPermission = 10003

	// Catalog module errors 200xx
	ErrProductNotFound   = 20001
	ErrProductInactive   = 20002
	ErrProductOutOfStock = 20003
	ErrInvalidPriceTiers = 20004
	ErrCategoryNotFound  = 20005

	// Group module errors 300xx
	ErrGroupNotFound   = 30001
	ErrGroupNotActive  = 30002
	ErrGroupFull       = 30003
	ErrAlreadyMember   = 30004
	ErrNotAMember      = 30005
	ErrGroupHasActive  = 30006
	ErrNotGroupCreator = 30007
	ErrMemberHasOrder  = 30008

	// Order / payment module errors 400xx
	ErrOrderNotFound     = 40001
	ErrOrderExists       = 40002
	ErrPaymentHoldFailed = 40003
	ErrPaymentRejected   = 40004
	ErrOrderStateInvalid = 40005
	ErrAddressNotFound   = 40006

	// Return module errors 450xx
	ErrReturnNotFound     = 45001
	ErrReturnNotAllowed   = 45002
	ErrReturnAlreadyOpen  = 45003
	ErrReturnStateInvalid = 45004

	// System errors 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
