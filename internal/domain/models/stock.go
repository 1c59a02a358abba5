package models

// StockItem is a plain counted item from the legacy inventory screen.
type StockItem struct {
	Record   `bson:",inline"`
	Name     string `json:"name" bson:"name"`
	Quantity int64  `json:"quantity" bson:"quantity"`
	Unit     string `json:"unit,omitempty" bson:"unit,omitempty"`
	Notes    string `json:"notes,omitempty" bson:"notes,omitempty"`
}
