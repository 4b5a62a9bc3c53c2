package domain

const (
	DefaultOperatingStatus = "Open"
	DefaultKitchenStatus   = "Normal"
	DefaultDeliveryStatus  = "Active"
)

type RestaurantStatus struct {
	OperatingStatus string `json:"operating_status"`
	KitchenStatus   string `json:"kitchen_status"`
	DeliveryStatus  string `json:"delivery_status"`
}

// StatusUpdate is a partial update; nil fields keep their stored value.
type StatusUpdate struct {
	OperatingStatus *string `json:"operating_status,omitempty"`
	KitchenStatus   *string `json:"kitchen_status,omitempty"`
	DeliveryStatus  *string `json:"delivery_status,omitempty"`
}

func (u StatusUpdate) Empty() bool {
	return u.OperatingStatus == nil && u.KitchenStatus == nil && u.DeliveryStatus == nil
}

type Restaurant struct {
	ID       int64            `json:"id"`
	Name     string           `json:"name"`
	Location string           `json:"location"`
	Status   RestaurantStatus `json:"status"`
}
