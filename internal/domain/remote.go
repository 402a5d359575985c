package domain

// DateLayout is the day-granularity date sent with submitted carts.
const DateLayout = "2006-01-02"

// RemoteProduct is a line of a cart record held by the external carts service.
type RemoteProduct struct {
	ProductID int64 `json:"productId" bson:"product_id"`
	Quantity  int   `json:"quantity" bson:"quantity"`
}

// RemoteCart is the external carts service's record of a cart for a user.
type RemoteCart struct {
	ID       int64           `json:"id" bson:"_id"`
	UserID   int64           `json:"userId" bson:"user_id"`
	Date     string          `json:"date" bson:"date"`
	Products []RemoteProduct `json:"products" bson:"products"`
}

type OrderReceipt struct {
	OrderID int64
}
