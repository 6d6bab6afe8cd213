package types

// Platform tags where a purchase was made. The ledger reports these verbatim.
type Platform string

const (
	PlatformAndroid Platform = "ANDROID"
	PlatformIOS     Platform = "IOS"
)

type PurchaseState string

const (
	PurchaseStatePurchased   PurchaseState = "PURCHASED"
	PurchaseStatePending     PurchaseState = "PENDING"
	PurchaseStateUnspecified PurchaseState = "UNSPECIFIED"
)

// ResponseCode is the purchase platform's result code vocabulary.
type ResponseCode string

const (
	ResponseOK               ResponseCode = "OK"
	ResponseUserCanceled     ResponseCode = "USER_CANCELED"
	ResponseItemAlreadyOwned ResponseCode = "ITEM_ALREADY_OWNED"
	ResponseItemUnavailable  ResponseCode = "ITEM_UNAVAILABLE"
	ResponseError            ResponseCode = "ERROR"
)

type PeriodTab string

const (
	PeriodTabWeekly  PeriodTab = "weekly"
	PeriodTabMonthly PeriodTab = "monthly"
	PeriodTabYearly  PeriodTab = "yearly"
)

// ProductType distinguishes subscription products from one-time items in the
// backend catalog.
type ProductType string

const (
	ProductTypeSubscription ProductType = "subscription"
	ProductTypeOneTime      ProductType = "one_time"
)
